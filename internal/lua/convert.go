package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// GoToLua converts a Go value to a Lua value. Unsupported types map to nil.
func GoToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []any:
		tbl := L.NewTable()
		for _, item := range v {
			tbl.Append(GoToLua(L, item))
		}
		return tbl
	case []string:
		tbl := L.NewTable()
		for _, item := range v {
			tbl.Append(lua.LString(item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, GoToLua(L, item))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// LuaToGo converts a Lua value to a Go value. Tables with only positive
// integer keys become slices, everything else becomes a string-keyed map.
func LuaToGo(value lua.LValue) any {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case *lua.LTable:
		return tableToGo(v)
	default:
		return nil
	}
}

func tableToGo(tbl *lua.LTable) any {
	length := tbl.Len()
	if length > 0 {
		arrayOnly := true
		tbl.ForEach(func(key, _ lua.LValue) {
			n, isNum := key.(lua.LNumber)
			if !isNum || float64(n) != float64(int(n)) || int(n) < 1 || int(n) > length {
				arrayOnly = false
			}
		})
		if arrayOnly {
			result := make([]any, 0, length)
			for i := 1; i <= length; i++ {
				result = append(result, LuaToGo(tbl.RawGetInt(i)))
			}
			return result
		}
	}

	result := make(map[string]any)
	tbl.ForEach(func(key, value lua.LValue) {
		result[key.String()] = LuaToGo(value)
	})
	return result
}
