package datasource

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/sanasol-ws/dualauth/internal/claims"
	luaservices "github.com/sanasol-ws/dualauth/internal/lua"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// LuaSource fetches profile attributes by running a Lua script. The
// script has access to the http, config, and json services and must
// define a fetch function:
//
//	function fetch(input)
//	  local response = http.get(config.get("profile_api_url") .. "/profiles/" .. input.subject)
//	  if response.status == 200 then
//	    return json.decode(response.body)
//	  end
//	  return nil
//	end
//
// fetch receives a table with a subject field and returns a table of
// attributes, or nil when nothing is known for the subject.
type LuaSource struct {
	script       string
	configSource luaservices.ConfigSource
	httpConfig   luaservices.HTTPServiceConfig
}

// LuaSourceConfig configures a Lua source
type LuaSourceConfig struct {
	// Script is the Lua script defining fetch(input) (required)
	Script string

	// ConfigSource backs config.get() in the script (optional)
	ConfigSource luaservices.ConfigSource

	// HTTPConfig configures the http service, mainly for timeouts and
	// test transports (optional)
	HTTPConfig *luaservices.HTTPServiceConfig
}

// NewLuaSource validates the script and creates the source
func NewLuaSource(config LuaSourceConfig) (*LuaSource, error) {
	if config.Script == "" {
		return nil, fmt.Errorf("script is required")
	}
	if config.ConfigSource == nil {
		config.ConfigSource = luaservices.NewMapConfigSource(nil)
	}

	// Reject broken scripts at construction rather than per request
	L := lua.NewState()
	defer L.Close()
	if err := L.DoString(config.Script); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	if L.GetGlobal("fetch").Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a 'fetch' function")
	}

	var httpConfig luaservices.HTTPServiceConfig
	if config.HTTPConfig != nil {
		httpConfig = *config.HTTPConfig
	}

	return &LuaSource{
		script:       config.Script,
		configSource: config.ConfigSource,
		httpConfig:   httpConfig,
	}, nil
}

// Fetch implements service.ProfileSource. Each call runs in a fresh Lua
// state, so scripts cannot leak state between subjects.
func (s *LuaSource) Fetch(ctx context.Context, subject string) (claims.Claims, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	luaservices.NewHTTPServiceWithConfig(s.httpConfig).Register(L)
	luaservices.NewConfigService(s.configSource).Register(L)
	luaservices.NewJSONService().Register(L)

	if err := L.DoString(s.script); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}

	input := L.NewTable()
	L.SetField(input, "subject", lua.LString(subject))

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("fetch"),
		NRet:    1,
		Protect: true,
	}, input); err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	if ret.Type() == lua.LTNil {
		return nil, nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("fetch function must return a table or nil, got %s", ret.Type())
	}

	native := luaservices.LuaToGo(tbl)
	attrs, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fetch function must return a table of attributes")
	}
	return claims.Claims(attrs), nil
}

var _ service.ProfileSource = (*LuaSource)(nil)
