package lua

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// JSONService provides JSON encoding and decoding to Lua scripts.
//
// Usage in Lua:
//
//	local data, err = json.decode(response.body)
//	local body, err = json.encode({name = "Player"})
type JSONService struct{}

// NewJSONService creates a JSON service
func NewJSONService() *JSONService {
	return &JSONService{}
}

// Register adds the json module to the Lua state
func (s *JSONService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "decode", L.NewFunction(s.luaDecode))
	L.SetField(mod, "encode", L.NewFunction(s.luaEncode))
	L.SetGlobal("json", mod)
}

// luaDecode implements json.decode(text)
func (s *JSONService) luaDecode(L *lua.LState) int {
	text := L.CheckString(1)

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return pushError(L, err.Error())
	}

	L.Push(GoToLua(L, value))
	return 1
}

// luaEncode implements json.encode(value)
func (s *JSONService) luaEncode(L *lua.LState) int {
	value := LuaToGo(L.Get(1))

	data, err := json.Marshal(value)
	if err != nil {
		return pushError(L, err.Error())
	}

	L.Push(lua.LString(data))
	return 1
}
