package observability

import (
	"fmt"
	"io"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that prints telemetry instead of exporting it.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// DefaultInterval is how often metrics are pushed when Interval is unset.
	DefaultInterval = 30 * time.Second

	// DefaultServiceVersion is reported when ServiceVersion is unset.
	DefaultServiceVersion = "dev"
)

// Config defines where the agent's traces and metrics go.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns no-op providers.
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// Endpoint is a collector address ("collector:4317", "https://otlp.example.com")
	// or EndpointStdout.
	Endpoint string

	// Protocol is ProtocolHTTP or ProtocolGRPC. Ignored for EndpointStdout.
	Protocol string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// Headers are sent with every export, typically for collector authentication.
	Headers map[string]string

	// Interval is the metric push period.
	Interval time.Duration

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = DefaultServiceVersion
	}
	if c.Protocol == "" && c.Endpoint != EndpointStdout {
		c.Protocol = ProtocolHTTP
	}
	c.Headers = cloneHeaderMap(c.Headers)
}

// Validate checks an enabled configuration. A disabled configuration is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Endpoint == EndpointStdout {
		return nil
	}

	hasScheme := strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://")
	switch c.Protocol {
	case ProtocolHTTP:
		return nil
	case ProtocolGRPC:
		if hasScheme {
			return fmt.Errorf("grpc endpoint %q must be host:port: %w", c.Endpoint, ErrInvalidEndpointFormat)
		}
		return nil
	default:
		return fmt.Errorf("protocol '%s': %w", c.Protocol, ErrInvalidProtocol)
	}
}

// cloneHeaderMap creates a copy of a header map to avoid aliasing.
// Returns nil if the input is nil.
func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}
