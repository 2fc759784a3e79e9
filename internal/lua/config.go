package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ConfigSource provides configuration values to scripts
type ConfigSource interface {
	// Get returns the value for key and whether it is set
	Get(key string) (any, bool)
}

// MapConfigSource is a ConfigSource backed by a map
type MapConfigSource struct {
	values map[string]any
}

// NewMapConfigSource creates a config source over values
// A nil map yields an empty source
func NewMapConfigSource(values map[string]any) *MapConfigSource {
	if values == nil {
		values = map[string]any{}
	}
	return &MapConfigSource{values: values}
}

// Get implements ConfigSource.
// A dotted key not present verbatim is resolved through nested maps, so
// "base.url" finds {"base": {"url": ...}} as written by koanf.
func (s *MapConfigSource) Get(key string) (any, bool) {
	if v, ok := s.values[key]; ok {
		return v, true
	}

	var current any = s.values
	for part := range strings.SplitSeq(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// ConfigService exposes configuration to Lua scripts
type ConfigService struct {
	source ConfigSource
}

// NewConfigService creates a config service reading from source
func NewConfigService(source ConfigSource) *ConfigService {
	if source == nil {
		source = NewMapConfigSource(nil)
	}
	return &ConfigService{source: source}
}

// Register adds the config service to the Lua state
// Usage in Lua:
//
//	local base = config.get("base_url")
//	local token = config.get("token", "anonymous")
func (s *ConfigService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(s.luaGet))
	L.SetGlobal("config", mod)
}

// luaGet implements config.get(key, [default])
func (s *ConfigService) luaGet(L *lua.LState) int {
	key := L.CheckString(1)
	if v, ok := s.source.Get(key); ok {
		L.Push(GoToLua(L, v))
		return 1
	}
	if L.GetTop() >= 2 {
		L.Push(L.Get(2))
		return 1
	}
	L.Push(lua.LNil)
	return 1
}
