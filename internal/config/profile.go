package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sanasol-ws/dualauth/internal/claims"
	"github.com/sanasol-ws/dualauth/internal/datasource"
	luaservices "github.com/sanasol-ws/dualauth/internal/lua"
	"github.com/sanasol-ws/dualauth/internal/mapper"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// NewProfileSource creates the profile attribute source from configuration,
// wrapped in the configured caching layers. Returns nil when no source is
// configured.
func NewProfileSource(cfg SourceConfig, transport http.RoundTripper) (service.ProfileSource, error) {
	var source service.ProfileSource
	var err error

	switch cfg.Type {
	case "":
		return nil, nil
	case "static":
		source = newStaticSource(cfg)
	case "lua":
		source, err = newLuaSource(cfg, transport)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown profile source type: %s (supported: static, lua)", cfg.Type)
	}

	return wrapCache(wrapFilter(source, cfg), cfg.Cache), nil
}

// NewEntitlementMapper creates the entitlement mapper from configuration.
// Returns nil when no mapper script is configured.
func NewEntitlementMapper(cfg ProfileConfig) (service.EntitlementMapper, error) {
	if cfg.MapperScript == "" {
		return nil, nil
	}
	m, err := mapper.NewCELMapper(cfg.MapperScript)
	if err != nil {
		return nil, fmt.Errorf("failed to create entitlement mapper: %w", err)
	}
	return m, nil
}

func newStaticSource(cfg SourceConfig) *datasource.StaticSource {
	profiles := make(map[string]claims.Claims, len(cfg.Static))
	for subject, attrs := range cfg.Static {
		profiles[subject] = claims.Claims(attrs)
	}
	return datasource.NewStaticSource(profiles)
}

func newLuaSource(cfg SourceConfig, transport http.RoundTripper) (*datasource.LuaSource, error) {
	script := cfg.Script
	if cfg.ScriptFile != "" {
		content, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read script file %s: %w", cfg.ScriptFile, err)
		}
		script = string(content)
	}
	if script == "" {
		return nil, fmt.Errorf("lua profile source requires either script or script_file")
	}

	sourceCfg := datasource.LuaSourceConfig{
		Script:       script,
		ConfigSource: luaservices.NewMapConfigSource(cfg.Params),
	}
	if transport != nil {
		sourceCfg.HTTPConfig = &luaservices.HTTPServiceConfig{Transport: transport}
	}
	return datasource.NewLuaSource(sourceCfg)
}

// wrapFilter applies the configured attribute allow/deny lists before any
// caching, so only filtered attributes are ever stored.
func wrapFilter(source service.ProfileSource, cfg SourceConfig) service.ProfileSource {
	if len(cfg.AllowAttributes) > 0 {
		source = datasource.NewFilteringSource(source, claims.NewAllowListFilter(cfg.AllowAttributes))
	}
	if len(cfg.DenyAttributes) > 0 {
		source = datasource.NewFilteringSource(source, claims.NewDenyListFilter(cfg.DenyAttributes))
	}
	return source
}

func wrapCache(source service.ProfileSource, cfg CacheConfig) service.ProfileSource {
	if !cfg.Enabled {
		return source
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if cfg.Distributed {
		return datasource.NewDistributedSource(datasource.DistributedSourceConfig{
			Source:         source,
			GroupName:      cfg.GroupName,
			CacheSizeBytes: cfg.SizeBytes,
			TTL:            ttl,
		})
	}
	return datasource.NewCachingSource(datasource.CachingSourceConfig{
		Source: source,
		TTL:    ttl,
	})
}
