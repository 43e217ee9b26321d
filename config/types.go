package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/agentlink/http"
)

// Config represents the agent configuration.
// The koanf instance it was loaded from is kept for keyed access to values
// not covered by the struct.
type Config struct {
	Agent         AgentConfig         `koanf:"agent" json:"agent" yaml:"agent"`
	Retry         http.RetryPolicy    `koanf:"retry" json:"retry" yaml:"retry"`
	Client        ClientConfig        `koanf:"client" json:"client" yaml:"client"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AgentConfig identifies the agent to its control plane. The section is
// optional at load time; see Validate.
type AgentConfig struct {
	ServerURL string `koanf:"server_url" json:"server_url" yaml:"server_url" validate:"omitempty,http_url"`
	ID        string `koanf:"agent_id" json:"agent_id" yaml:"agent_id"`
	AuthToken string `koanf:"auth_token" json:"-" yaml:"-"`
}

// ClientConfig holds transport settings for control-plane calls.
type ClientConfig struct {
	// Timeout bounds a single attempt, not the whole retry sequence.
	Timeout   time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 disables limiting
	RateBurst int           `koanf:"rate_burst" json:"rate_burst" yaml:"rate_burst" validate:"gte=1"`
	UserAgent string        `koanf:"user_agent" json:"user_agent" yaml:"user_agent" validate:"required"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ObservabilityConfig selects where traces and metrics are exported.
type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName string `koanf:"service_name" json:"service_name" yaml:"service_name"`
	// Endpoint is the OTLP collector address, or "stdout" to print telemetry.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	// Protocol is "http" or "grpc"; ignored for the stdout endpoint.
	Protocol string        `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure bool          `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
	// Headers are sent with every OTLP export, e.g. collector API keys.
	Headers map[string]string `koanf:"headers" json:"-" yaml:"headers"`
}

// RetryPolicy returns the configured retry policy for the executor.
func (c *Config) RetryPolicy() *http.RetryPolicy {
	p := c.Retry
	return &p
}
