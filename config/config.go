package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read into the configuration.
// A double underscore separates sections: AGENTLINK_RETRY__MAX_RETRIES sets retry.max_retries.
const EnvPrefix = "AGENTLINK_"

// Option customizes how configuration is loaded.
type Option func(*loader)

type loader struct {
	environ func() []string
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) Option {
	return func(l *loader) {
		l.environ = environ
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. The YAML file at path, when path is not empty
// 3. Default values (lowest priority)
func Load(path string, opts ...Option) (*Config, error) {
	var src koanf.Provider
	if path != "" {
		src = file.Provider(path)
	}
	return load(src, opts)
}

// LoadFromBytes loads configuration from an in-memory YAML document with the
// same layering as Load.
func LoadFromBytes(data []byte, opts ...Option) (*Config, error) {
	return load(rawbytes.Provider(data), opts)
}

func load(src koanf.Provider, opts []Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if src != nil {
		if err := k.Load(src, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   l.environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey converts AGENTLINK_CLIENT__RATE_LIMIT to client.rate_limit.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	if key == "" {
		return "", nil
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"retry.max_retries":     3,
		"retry.initial_delay":   "1s",
		"retry.max_delay":       "30s",
		"retry.backoff_factor":  2.0,
		"retry.jitter_fraction": 0.3,

		"client.timeout":    "30s",
		"client.rate_limit": 10.0,
		"client.rate_burst": 5,
		"client.user_agent": "agentlink/1.0",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":      false,
		"observability.service_name": "agentlink",
		"observability.endpoint":     "",
		"observability.protocol":     "http",
		"observability.insecure":     false,
		"observability.interval":     "30s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
