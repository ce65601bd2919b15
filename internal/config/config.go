// Package config loads whoislookup settings from defaults, an optional YAML
// file, a .env file, the environment and command-line overrides, in that
// order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"sigs.k8s.io/yaml"
)

const (
	// EnvPrefix prefixes every environment variable read into the config
	EnvPrefix = "WHOISLOOKUP_"
	// APIKeyEnv holds the remote provider's API key
	APIKeyEnv = "WHOIS_API_KEY"

	ProviderAPI    = "api"
	ProviderDirect = "direct"
)

// Config is the complete application configuration
type Config struct {
	Provider ProviderConfig `koanf:"provider"`
	Server   ServerConfig   `koanf:"server"`
	Lookup   LookupConfig   `koanf:"lookup"`
	Log      LogConfig      `koanf:"log"`
}

// ProviderConfig selects and configures the WHOIS provider
type ProviderConfig struct {
	Kind    string `koanf:"kind"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"` // #nosec G117
	// Timeout bounds one provider query. Zero means no timeout.
	Timeout time.Duration `koanf:"timeout"`
}

// ServerConfig configures the browser renderer
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LookupConfig configures the lookup controller and the live check
type LookupConfig struct {
	StaleGuard bool          `koanf:"stale_guard"`
	Dig        bool          `koanf:"dig"`
	DigTimeout time.Duration `koanf:"dig_timeout"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var defaults = map[string]any{
	"provider.kind":           ProviderAPI,
	"provider.base_url":       "https://api.apilayer.com",
	"provider.timeout":        "0s",
	"server.addr":             ":8080",
	"server.shutdown_timeout": "10s",
	"lookup.stale_guard":      false,
	"lookup.dig":              false,
	"lookup.dig_timeout":      "5s",
	"log.level":               "info",
	"log.format":              "console",
}

// Options controls where Load reads from
type Options struct {
	// File is an optional YAML config file. It must exist when set.
	File string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// Overrides are applied last, keyed by dotted path (e.g. "log.level").
	Overrides map[string]any
}

// Load builds the configuration from all layers and validates it
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yamlParser{}); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", opts.File, err)
		}
	}

	if opts.EnvFile != "" {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", opts.EnvFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if apiKey, ok := os.LookupEnv(APIKeyEnv); ok {
		if err := k.Set("provider.api_key", apiKey); err != nil {
			return nil, err
		}
	}

	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("applying override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps WHOISLOOKUP_PROVIDER_BASE_URL to provider.base_url. Only the
// first underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate rejects settings no component can act on
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderAPI, ProviderDirect:
	default:
		return fmt.Errorf("unknown provider kind %q (want %s or %s)", c.Provider.Kind, ProviderAPI, ProviderDirect)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.Log.Format)
	}

	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider timeout must not be negative")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	return nil
}

// yamlParser adapts sigs.k8s.io/yaml to koanf.Parser
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]any) ([]byte, error) {
	return yaml.Marshal(m)
}
