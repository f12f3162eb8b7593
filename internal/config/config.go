// Package config loads the dualauth configuration and builds the
// application components from it.
package config

import (
	"github.com/spf13/pflag"
)

// Config is the full application configuration.
type Config struct {
	// BaseDomain is the domain suffix issuer resolution answers for
	BaseDomain string `koanf:"base_domain"`

	// LocalHosts are additional hosts classified as local issuers
	LocalHosts []string `koanf:"local_hosts"`

	// OfficialIssuers is the allow-list of official vendor issuer hosts
	OfficialIssuers []string `koanf:"official_issuers"`

	// SigningKeyPath is where the signing key record lives
	SigningKeyPath string `koanf:"signing_key_path"`

	// SessionTTLSeconds is the token lifetime for emitted sessions
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	// ForeignKeyTTLSeconds is how long fetched foreign keys stay live
	ForeignKeyTTLSeconds int `koanf:"foreign_key_ttl_seconds"`

	// ForeignKeyNegativeTTLSeconds is the retry hold-off after a failed
	// JWKS fetch
	ForeignKeyNegativeTTLSeconds int `koanf:"foreign_key_negative_ttl_seconds"`

	// AcceptSelfSigned enables the self-signed exchange bypass
	AcceptSelfSigned bool `koanf:"accept_self_signed"`

	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	Profile       ProfileConfig       `koanf:"profile"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig configures the listeners
type ServerConfig struct {
	// ListenAddr is the HTTP listen address
	ListenAddr string `koanf:"listen_addr"`

	// AuthzListenAddr is the Envoy ext_authz gRPC listen address.
	// Empty disables the authz server.
	AuthzListenAddr string `koanf:"authz_listen_addr"`
}

// StoreConfig selects the session registry backend
type StoreConfig struct {
	// Backend is "memory" or "redis"
	Backend string `koanf:"backend"`

	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig configures the Redis session store
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`

	// KeyPrefix namespaces all keys (defaults to "dualauth:")
	KeyPrefix string `koanf:"key_prefix"`
}

// ProfileConfig configures the profile data plane
type ProfileConfig struct {
	Source SourceConfig `koanf:"source"`

	// MapperScript is a CEL expression deriving the entitlements list.
	// Empty disables entitlement mapping.
	MapperScript string `koanf:"mapper_script"`
}

// SourceConfig configures the profile attribute source
type SourceConfig struct {
	// Type is "static", "lua", or empty for no source
	Type string `koanf:"type"`

	// Static holds per-subject attributes for the static source
	Static map[string]map[string]any `koanf:"static"`

	// Script is an inline Lua script for the lua source
	Script string `koanf:"script"`

	// ScriptFile loads the Lua script from a file instead
	ScriptFile string `koanf:"script_file"`

	// Params backs config.get() in Lua scripts
	Params map[string]string `koanf:"params"`

	// AllowAttributes keeps only the listed attributes from the source.
	// Empty means no allow filtering.
	AllowAttributes []string `koanf:"allow_attributes"`

	// DenyAttributes drops the listed attributes from the source
	DenyAttributes []string `koanf:"deny_attributes"`

	Cache CacheConfig `koanf:"cache"`
}

// CacheConfig configures caching around the profile source
type CacheConfig struct {
	// Enabled turns on the in-memory TTL cache
	Enabled bool `koanf:"enabled"`

	// TTLSeconds is the entry lifetime (defaults to 300)
	TTLSeconds int `koanf:"ttl_seconds"`

	// Distributed uses groupcache instead of the per-process map
	Distributed bool `koanf:"distributed"`

	// GroupName names the groupcache group
	GroupName string `koanf:"group_name"`

	// SizeBytes limits the distributed cache
	SizeBytes int64 `koanf:"size_bytes"`
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	// LogLevel is debug, info, warn, or error (defaults to info)
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json" (defaults to text)
	LogFormat string `koanf:"log_format"`

	Metrics MetricsConfig `koanf:"metrics"`
}

// MetricsConfig configures the in-process metrics observer
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`

	// Buffer is the event channel capacity
	Buffer int `koanf:"buffer"`
}

// getDefaults returns the default configuration values
func getDefaults() map[string]interface{} {
	return map[string]interface{}{
		"base_domain":                      "sessions.sanasol.ws",
		"signing_key_path":                 "dualauth-signing-key.json",
		"session_ttl_seconds":              36000,
		"foreign_key_ttl_seconds":          3600,
		"foreign_key_negative_ttl_seconds": 30,
		"accept_self_signed":               false,
		"server.listen_addr":               ":8080",
		"store.backend":                    "memory",
		"store.redis.key_prefix":           "dualauth:",
		"observability.log_level":          "info",
		"observability.log_format":         "text",
	}
}

// GetFlagMapping maps command-line flag names to config keys
func GetFlagMapping() map[string]string {
	return map[string]string{
		"base-domain":        "base_domain",
		"signing-key-path":   "signing_key_path",
		"session-ttl":        "session_ttl_seconds",
		"accept-self-signed": "accept_self_signed",
		"listen-addr":        "server.listen_addr",
		"authz-listen-addr":  "server.authz_listen_addr",
		"store-backend":      "store.backend",
		"redis-addr":         "store.redis.addr",
		"log-level":          "observability.log_level",
	}
}

// RegisterFlags registers the config-overriding flags on a flag set
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("base-domain", "", "domain suffix for issuer resolution")
	flags.String("signing-key-path", "", "path of the signing key record")
	flags.Int("session-ttl", 0, "session token lifetime in seconds")
	flags.Bool("accept-self-signed", false, "accept self-signed tokens at exchange")
	flags.String("listen-addr", "", "HTTP listen address")
	flags.String("authz-listen-addr", "", "ext_authz gRPC listen address")
	flags.String("store-backend", "", "session store backend (memory, redis)")
	flags.String("redis-addr", "", "redis address for the session store")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
}
