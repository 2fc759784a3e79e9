package lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestConfigService(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	NewConfigService(NewMapConfigSource(map[string]any{
		"base_url": "https://orgs.example.com",
		"retries":  3,
	})).Register(L)

	assert.Equal(t, "https://orgs.example.com", runScript(t, L, `return config.get("base_url")`))
	assert.Equal(t, "3", runScript(t, L, `return config.get("retries") .. ""`))
	assert.Equal(t, "fallback", runScript(t, L, `return config.get("missing", "fallback")`))
	assert.Equal(t, "nil", runScript(t, L, `return tostring(config.get("missing"))`))
}

func TestMapConfigSource_DottedKeys(t *testing.T) {
	source := NewMapConfigSource(map[string]any{
		"base":       map[string]any{"url": "https://orgs.example.com"},
		"token.name": "verbatim",
		"token":      map[string]any{"name": "nested"},
		"retries":    3,
	})

	v, ok := source.Get("base.url")
	assert.True(t, ok)
	assert.Equal(t, "https://orgs.example.com", v)

	v, ok = source.Get("token.name")
	assert.True(t, ok)
	assert.Equal(t, "verbatim", v, "verbatim keys win over nested paths")

	_, ok = source.Get("base.port")
	assert.False(t, ok)

	_, ok = source.Get("retries.max")
	assert.False(t, ok)

	L := lua.NewState()
	defer L.Close()
	NewConfigService(source).Register(L)
	assert.Equal(t, "https://orgs.example.com", runScript(t, L, `return config.get("base.url")`))
}

func TestJSONService(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	NewJSONService().Register(L)

	t.Run("decode", func(t *testing.T) {
		got := runScript(t, L, `
			local orgs = json.decode('[{"id":"acme","attributes":{"audience":["svc-a"]}}]')
			return orgs[1].id .. ":" .. orgs[1].attributes.audience[1]
		`)
		assert.Equal(t, "acme:svc-a", got)
	})

	t.Run("encode", func(t *testing.T) {
		got := runScript(t, L, `return json.encode({subject = "alice"})`)
		assert.JSONEq(t, `{"subject":"alice"}`, got)
	})

	t.Run("decode error", func(t *testing.T) {
		got := runScript(t, L, `local v, err = json.decode("{nope") return err`)
		assert.Contains(t, got, "failed to decode JSON")
	})
}

func TestConversions(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	t.Run("round trip", func(t *testing.T) {
		in := map[string]any{
			"id":    "acme",
			"count": int64(2),
			"ratio": 0.5,
			"ok":    true,
			"tags":  []any{"a", "b"},
		}
		assert.Equal(t, in, LuaToGo(GoToLua(L, in)))
	})

	t.Run("attribute maps become tables of lists", func(t *testing.T) {
		v := GoToLua(L, map[string][]string{"audience": {"svc-a", "svc-b"}})
		tbl, ok := v.(*lua.LTable)
		require.True(t, ok)

		list, err := StringList(tbl.RawGetString("audience"))
		require.NoError(t, err)
		assert.Equal(t, []string{"svc-a", "svc-b"}, list)
	})

	t.Run("string list", func(t *testing.T) {
		list, err := StringList(lua.LString("svc"))
		require.NoError(t, err)
		assert.Equal(t, []string{"svc"}, list)

		list, err = StringList(lua.LNil)
		require.NoError(t, err)
		assert.Nil(t, list)

		list, err = StringList(L.NewTable())
		require.NoError(t, err)
		assert.Empty(t, list)

		mixed := L.NewTable()
		mixed.Append(lua.LString("ok"))
		mixed.Append(lua.LNumber(1))
		_, err = StringList(mixed)
		assert.Error(t, err)

		keyed := L.NewTable()
		keyed.RawSetString("x", lua.LString("y"))
		_, err = StringList(keyed)
		assert.Error(t, err)
	})
}
