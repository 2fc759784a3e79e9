package lua

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// JSONService provides JSON encoding and decoding to Lua scripts
type JSONService struct{}

// NewJSONService creates a JSON service
func NewJSONService() *JSONService {
	return &JSONService{}
}

// Register adds the JSON service to the Lua state
// Usage in Lua:
//
//	local orgs = json.decode(response.body)
//	local body = json.encode({subject = subject.id})
func (s *JSONService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "encode", L.NewFunction(s.luaEncode))
	L.SetField(mod, "decode", L.NewFunction(s.luaDecode))
	L.SetGlobal("json", mod)
}

// luaEncode implements json.encode(value)
// Returns: string or (nil, error)
func (s *JSONService) luaEncode(L *lua.LState) int {
	data, err := json.Marshal(LuaToGo(L.CheckAny(1)))
	if err != nil {
		return pushError(L, fmt.Sprintf("failed to encode JSON: %v", err))
	}
	L.Push(lua.LString(string(data)))
	return 1
}

// luaDecode implements json.decode(string)
// Returns: value or (nil, error)
func (s *JSONService) luaDecode(L *lua.LState) int {
	var v any
	if err := json.Unmarshal([]byte(L.CheckString(1)), &v); err != nil {
		return pushError(L, fmt.Sprintf("failed to decode JSON: %v", err))
	}
	L.Push(GoToLua(L, v))
	return 1
}
