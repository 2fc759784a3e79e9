package cel

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/orgaud/internal/service"
)

func evalAudience(t *testing.T, expr string, session *service.Session, orgs []*service.Organization) ([]string, error) {
	t.Helper()

	env, err := cel.NewEnv(AudienceInputLibrary())
	require.NoError(t, err)

	ast, iss := env.Compile(expr)
	require.NoError(t, iss.Err())

	prg, err := env.Program(ast)
	require.NoError(t, err)

	out, _, err := prg.Eval(AudienceActivation(session, orgs))
	require.NoError(t, err)

	return AudienceValues(out)
}

func TestAudienceExpressions(t *testing.T) {
	session := &service.Session{
		ID:       "s1",
		ClientID: "portal",
		Scope:    "openid profile",
		Subject: service.Subject{
			ID:         "u1",
			Username:   "alice",
			Attributes: map[string][]string{"tier": {"gold"}},
		},
	}
	orgs := []*service.Organization{
		{ID: "acme", Name: "Acme", Attributes: map[string][]string{"audience": {"svc-a", "svc-x"}}},
		{ID: "globex", Attributes: map[string][]string{"region": {"eu"}}},
		nil,
	}

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"literal string", `"static"`, []string{"static"}},
		{"null yields nothing", `null`, nil},
		{"subject fields", `[subject.id, subject.username]`, []string{"u1", "alice"}},
		{"subject attributes", `subject.attributes["tier"]`, []string{"gold"}},
		{"session fields", `session.client_id + ":" + session.id`, []string{"portal:s1"}},
		{"organization ids", `organizations.map(o, o.id)`, []string{"acme", "globex"}},
		{"first attribute", `organizations.map(o, attribute(o, "audience"))`, []string{"svc-a", ""}},
		{
			"filtered attribute",
			`organizations.filter(o, attribute(o, "audience") != "").map(o, attribute(o, "audience"))`,
			[]string{"svc-a"},
		},
		{"attribute of literal map", `attribute({"attributes": {"audience": ["lit"]}}, "audience")`, []string{"lit"}},
		{"attribute of non map", `attribute(1, "audience")`, []string{""}},
		{"lightweight flag", `session.lightweight ? "light" : "full"`, []string{"full"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalAudience(t, tt.expr, session, orgs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAudienceActivation_NilSession(t *testing.T) {
	got, err := evalAudience(t, `size(organizations) == 0 && !has(subject.id) ? "empty" : "set"`, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, got)
}

func TestAudienceValues(t *testing.T) {
	t.Run("string list", func(t *testing.T) {
		got, err := AudienceValues(types.DefaultTypeAdapter.NativeToValue([]string{"a", "b"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("mixed list", func(t *testing.T) {
		_, err := AudienceValues(types.DefaultTypeAdapter.NativeToValue([]any{"a", 1}))
		assert.ErrorContains(t, err, "only contain strings")
	})

	t.Run("other types", func(t *testing.T) {
		_, err := AudienceValues(types.Int(3))
		assert.ErrorContains(t, err, "string or list of strings")
	})
}

func TestConvertCELValue(t *testing.T) {
	val := types.DefaultTypeAdapter.NativeToValue(map[string]any{
		"id":   "acme",
		"tags": []any{"x", "y"},
	})

	got, ok := ConvertCELValue(val).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acme", got["id"])
	assert.Equal(t, []any{"x", "y"}, got["tags"])
}
