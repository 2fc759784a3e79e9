package lua

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// GoToLua converts a Go value to a Lua value.
// Maps become tables with string keys and slices become sequences.
func GoToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []string:
		tbl := L.NewTable()
		for _, item := range v {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for _, item := range v {
			tbl.Append(GoToLua(L, item))
		}
		return tbl
	case map[string]string:
		tbl := L.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, lua.LString(item))
		}
		return tbl
	case map[string][]string:
		tbl := L.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, GoToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, GoToLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// LuaToGo converts a Lua value to a Go value.
// Tables whose keys are exactly 1..n become []any, other tables become
// map[string]any keyed by the string form of each key.
func LuaToGo(value lua.LValue) any {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LTable:
		if n := v.MaxN(); n > 0 && isSequence(v, n) {
			list := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				list = append(list, LuaToGo(v.RawGetInt(i)))
			}
			return list
		}
		m := make(map[string]any)
		v.ForEach(func(key, item lua.LValue) {
			m[key.String()] = LuaToGo(item)
		})
		return m
	default:
		return v.String()
	}
}

// isSequence reports whether the table holds only the keys 1..n
func isSequence(tbl *lua.LTable, n int) bool {
	count := 0
	sequence := true
	tbl.ForEach(func(key, _ lua.LValue) {
		count++
		if _, ok := key.(lua.LNumber); !ok {
			sequence = false
		}
	})
	return sequence && count == n
}

// StringList reads a Lua value as a list of strings.
// A single string yields a one element list; non-string elements are an error.
func StringList(value lua.LValue) ([]string, error) {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		return []string{string(v)}, nil
	case *lua.LTable:
		n := v.MaxN()
		if n == 0 {
			var keys []string
			v.ForEach(func(key, _ lua.LValue) { keys = append(keys, key.String()) })
			if len(keys) > 0 {
				sort.Strings(keys)
				return nil, fmt.Errorf("expected a list, got table with keys %v", keys)
			}
			return []string{}, nil
		}
		out := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			s, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, fmt.Errorf("element %d must be a string, got %s", i, v.RawGetInt(i).Type())
			}
			out = append(out, string(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list, got %s", value.Type())
	}
}
