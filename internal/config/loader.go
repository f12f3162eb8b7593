package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Loader is a lightweight wrapper around koanf for loading configuration
// from files and environment variables
type Loader struct {
	k          *koanf.Koanf
	configPath string
}

// NewLoader creates a configuration loader that reads from a file and
// overlays environment variable overrides with DUALAUTH_ prefix.
//
// The file format (YAML, JSON, or TOML) is auto-detected from the extension.
// Environment variables like DUALAUTH_SERVER__LISTEN_ADDR map to
// server.listen_addr. If configPath is empty, only environment variables
// and defaults are loaded.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DUALAUTH_*)
//  2. Configuration file (if provided)
//  3. Built-in defaults
func NewLoader(configPath string) (*Loader, error) {
	return newLoader(configPath, nil)
}

// NewLoaderWithFlags creates a configuration loader with command-line flag
// support. Flags take the highest precedence, above environment variables.
func NewLoaderWithFlags(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	return newLoader(configPath, flags)
}

func newLoader(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(getDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		parser, err := getParserForFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Double underscore nests: DUALAUTH_STORE__BACKEND -> store.backend.
	// Single underscore stays in the field name: DUALAUTH_BASE_DOMAIN ->
	// base_domain.
	if err := k.Load(envProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if flags != nil {
		flagMapping := GetFlagMapping()

		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			configKey, ok := flagMapping[f.Name]
			if !ok {
				return "", nil
			}
			// Only explicitly set flags override
			if !f.Changed {
				return "", nil
			}
			return configKey, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load command-line flags: %w", err)
		}
	}

	return &Loader{
		k:          k,
		configPath: configPath,
	}, nil
}

// Get unmarshals the configuration into a Config struct
func (l *Loader) Get() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Watch watches the config file for changes and calls onChange with the
// new config. It runs until the context is cancelled.
//
// Not all components can be safely hot-reloaded; callers decide what a
// changed config applies to. With no config file this blocks until the
// context is cancelled.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config) error) error {
	if l.configPath == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	fp := file.Provider(l.configPath)

	if err := fp.Watch(func(event interface{}, err error) {
		if err != nil {
			slog.Warn("config watch error", "error", err)
			return
		}

		parser, err := getParserForFile(l.configPath)
		if err != nil {
			slog.Warn("config parser error", "error", err)
			return
		}

		k := koanf.New(".")
		if err := k.Load(confmap.Provider(getDefaults(), "."), nil); err != nil {
			slog.Warn("config reload error", "error", err)
			return
		}
		if err := k.Load(fp, parser); err != nil {
			slog.Warn("config reload error", "error", err)
			return
		}
		if err := k.Load(envProvider(), nil); err != nil {
			slog.Warn("env reload error", "error", err)
			return
		}

		var cfg Config
		if err := k.Unmarshal("", &cfg); err != nil {
			slog.Warn("config unmarshal error", "error", err)
			return
		}

		l.k = k

		if err := onChange(&cfg); err != nil {
			slog.Warn("config onChange error", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// getParserForFile returns the koanf parser for a file extension
func getParserForFile(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}
}

// envProvider builds the DUALAUTH_ environment variable provider
func envProvider() *env.Env {
	return env.Provider(".", env.Opt{
		Prefix: "DUALAUTH_",
		TransformFunc: func(k, v string) (string, any) {
			return envTransform(k), v
		},
	})
}

// envTransform transforms environment variable names to config keys:
//
//	DUALAUTH_SERVER__LISTEN_ADDR -> server.listen_addr
//	DUALAUTH_BASE_DOMAIN -> base_domain
func envTransform(s string) string {
	s = strings.TrimPrefix(s, "DUALAUTH_")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "__", ".")
	return s
}
