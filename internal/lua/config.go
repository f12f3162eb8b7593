package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// ConfigSource provides configuration values to Lua scripts
type ConfigSource interface {
	// Get returns the value for a key and whether it exists
	Get(key string) (string, bool)
}

// MapConfigSource is a ConfigSource backed by a map
type MapConfigSource map[string]string

// NewMapConfigSource creates a map-backed config source. A nil map yields
// an empty source.
func NewMapConfigSource(values map[string]string) MapConfigSource {
	if values == nil {
		values = make(map[string]string)
	}
	return MapConfigSource(values)
}

// Get implements ConfigSource
func (m MapConfigSource) Get(key string) (string, bool) {
	value, ok := m[key]
	return value, ok
}

// ConfigService exposes deployment configuration to Lua scripts.
//
// Usage in Lua:
//
//	local base_url = config.get("profile_api_url")
type ConfigService struct {
	source ConfigSource
}

// NewConfigService creates a config service over the given source
func NewConfigService(source ConfigSource) *ConfigService {
	if source == nil {
		source = NewMapConfigSource(nil)
	}
	return &ConfigService{source: source}
}

// Register adds the config module to the Lua state
func (s *ConfigService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(s.luaGet))
	L.SetGlobal("config", mod)
}

// luaGet implements config.get(key), returning nil for missing keys
func (s *ConfigService) luaGet(L *lua.LState) int {
	key := L.CheckString(1)
	value, ok := s.source.Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}
