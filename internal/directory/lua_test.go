package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/orgaud/internal/httpfixture"
	luaservices "github.com/project-kessel/orgaud/internal/lua"
	"github.com/project-kessel/orgaud/internal/service"
)

const remoteDirectoryScript = `
function memberships(subject)
	local response, err = http.get(config.get("base_url") .. "/users/" .. subject.id .. "/organizations")
	if response == nil then
		error(err)
	end
	if response.status == 404 then
		return {}
	end
	if response.status ~= 200 then
		error("directory returned " .. response.status)
	end
	return json.decode(response.body)
end
`

func newFixtureDirectory(t *testing.T, rules []httpfixture.HTTPFixtureRule) *LuaDirectory {
	t.Helper()
	dir, err := NewLuaDirectory(LuaDirectoryConfig{
		Script: remoteDirectoryScript,
		ConfigSource: luaservices.NewMapConfigSource(map[string]any{
			"base_url": "https://orgs.example.com",
		}),
		HTTPConfig: &luaservices.HTTPServiceConfig{
			Transport: httpfixture.NewTransport(httpfixture.TransportConfig{
				Provider: httpfixture.NewRuleBasedProvider(rules),
				Strict:   true,
			}),
		},
	})
	require.NoError(t, err)
	return dir
}

func TestNewLuaDirectory(t *testing.T) {
	tests := []struct {
		name   string
		script string
		errMsg string
	}{
		{"missing script", "", "script is required"},
		{"invalid syntax", "invalid lua syntax {{{", "failed to load script"},
		{"missing function", "function other() return {} end", "must define a 'memberships' function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLuaDirectory(LuaDirectoryConfig{Script: tt.script})
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestLuaDirectory_Inline(t *testing.T) {
	dir, err := NewLuaDirectory(LuaDirectoryConfig{Script: `
function memberships(subject)
	if subject.id ~= "alice" then
		return nil
	end
	return {
		{id = "acme", name = "Acme", attributes = {audience = {"svc-a", "ignored"}}},
		{id = "globex", attributes = {audience = "svc-b"}},
		{id = "initech"},
	}
end
`})
	require.NoError(t, err)

	orgs := collect(t, dir, "alice")
	require.Len(t, orgs, 3)
	assert.Equal(t, "Acme", orgs[0].Name)
	assert.Equal(t, []string{"svc-a", "ignored"}, orgs[0].Attributes["audience"])
	assert.Equal(t, []string{"svc-b"}, orgs[1].Attributes["audience"])
	assert.Nil(t, orgs[2].Attributes)

	assert.Empty(t, collect(t, dir, "bob"))
}

func TestLuaDirectory_SubjectFields(t *testing.T) {
	dir, err := NewLuaDirectory(LuaDirectoryConfig{Script: `
function memberships(subject)
	return {{id = subject.username .. "-" .. subject.attributes.tenant[1]}}
end
`})
	require.NoError(t, err)

	orgs, err := service.CollectMemberships(dir.MembershipsOf(context.Background(), service.Subject{
		ID:         "u1",
		Username:   "alice",
		Attributes: map[string][]string{"tenant": {"t1"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice-t1"}, ids(orgs))
}

func TestLuaDirectory_InvalidResults(t *testing.T) {
	tests := []struct {
		name   string
		result string
		errMsg string
	}{
		{"not a table", `"acme"`, "must return a table or nil"},
		{"organization not a table", `{"acme"}`, "must be a table"},
		{"missing id", `{{name = "x"}}`, "'id' field"},
		{"bad attributes", `{{id = "acme", attributes = "x"}}`, "'attributes' field"},
		{"bad attribute value", `{{id = "acme", attributes = {audience = {1}}}}`, "attribute \"audience\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, err := NewLuaDirectory(LuaDirectoryConfig{
				Script: "function memberships(subject) return " + tt.result + " end",
			})
			require.NoError(t, err)

			_, err = service.CollectMemberships(dir.MembershipsOf(context.Background(), service.Subject{ID: "alice"}))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestLuaDirectory_HTTPFixtures(t *testing.T) {
	rules := []httpfixture.HTTPFixtureRule{
		{
			Request: httpfixture.FixtureRequest{
				Method: "GET",
				URL:    "https://orgs.example.com/users/alice/organizations",
			},
			Response: httpfixture.Fixture{
				StatusCode: 200,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `[{"id":"acme","attributes":{"audience":["svc-a"]}},{"id":"globex","attributes":{"audience":[""]}}]`,
			},
		},
		{
			Request: httpfixture.FixtureRequest{
				Method:  "GET",
				URL:     "https://orgs.example.com/users/ghost.*",
				URLType: httpfixture.URLTypePattern,
			},
			Response: httpfixture.Fixture{StatusCode: 404},
		},
		{
			Request: httpfixture.FixtureRequest{
				Method:  "GET",
				URL:     "https://orgs.example.com/users/broken/",
				URLType: httpfixture.URLTypePrefix,
			},
			Response: httpfixture.Fixture{StatusCode: 503},
		},
	}
	dir := newFixtureDirectory(t, rules)

	t.Run("decodes memberships", func(t *testing.T) {
		orgs := collect(t, dir, "alice")
		require.Len(t, orgs, 2)
		assert.Equal(t, []string{"svc-a"}, orgs[0].Attributes["audience"])
		assert.Equal(t, []string{""}, orgs[1].Attributes["audience"])
	})

	t.Run("not found means no memberships", func(t *testing.T) {
		assert.Empty(t, collect(t, dir, "ghost"))
	})

	t.Run("server error fails enumeration", func(t *testing.T) {
		_, err := service.CollectMemberships(dir.MembershipsOf(context.Background(), service.Subject{ID: "broken"}))
		assert.ErrorContains(t, err, "directory returned 503")
	})

	t.Run("unknown request fails enumeration", func(t *testing.T) {
		_, err := service.CollectMemberships(dir.MembershipsOf(context.Background(), service.Subject{ID: "nobody"}))
		assert.ErrorContains(t, err, "no fixture provided")
	})
}

func TestLuaDirectory_Cancelled(t *testing.T) {
	dir, err := NewLuaDirectory(LuaDirectoryConfig{Script: `
function memberships(subject)
	while true do end
end
`})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = service.CollectMemberships(dir.MembershipsOf(ctx, service.Subject{ID: "alice"}))
	assert.Error(t, err)
}
