package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/agentlink/logger"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Provider manages the lifecycle of the tracer and meter providers handed to
// the request executor.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and releases exporters.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately exports pending telemetry.
	ForceFlush(ctx context.Context) error
}

type provider struct {
	config         Config
	log            logger.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates an observability provider from cfg. A disabled config
// yields no-op providers. An enabled one builds SDK providers with the
// exporters selected by Endpoint and Protocol and installs them, together with
// the W3C trace-context propagator, as the otel globals.
func NewProvider(cfg *Config, log logger.Logger) (Provider, error) {
	if log == nil {
		log = logger.Disabled()
	}
	if cfg == nil {
		return nil, ErrNilConfig
	}

	safeCfg := *cfg
	safeCfg.ApplyDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if !safeCfg.Enabled {
		log.Debug().Msg("observability disabled, using no-op providers")
		return newNoopProvider(), nil
	}

	p := &provider{config: safeCfg, log: log}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(res); err != nil {
		return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
	}
	if err := p.initMeterProvider(res); err != nil {
		_ = p.tracerProvider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", safeCfg.ServiceName).
		Str("endpoint", safeCfg.Endpoint).
		Str("protocol", safeCfg.Protocol).
		Msg("observability provider initialized")
	return p, nil
}

func (p *provider) createResource() (*resource.Resource, error) {
	customRes, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.ServiceName),
			semconv.ServiceVersion(p.config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), customRes)
}

func (p *provider) writer() io.Writer {
	if p.config.Writer != nil {
		return p.config.Writer
	}
	return os.Stdout
}

func (p *provider) hasScheme() bool {
	return strings.HasPrefix(p.config.Endpoint, "http://") || strings.HasPrefix(p.config.Endpoint, "https://")
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	if p.config.Endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.writer()))
	}

	switch p.config.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{}
		if p.hasScheme() {
			opts = append(opts, otlptracehttp.WithEndpointURL(p.config.Endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(p.config.Endpoint))
		}
		if p.config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(p.config.Headers))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(p.config.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", p.config.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(p.config.Interval))),
	)
	return nil
}

func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	if p.config.Endpoint == EndpointStdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(p.writer()))
	}

	switch p.config.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{}
		if p.hasScheme() {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(p.config.Endpoint))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(p.config.Endpoint))
		}
		if p.config.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(p.config.Headers))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.Endpoint)}
		if p.config.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(p.config.Headers))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", p.config.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.tracerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("flush errors: %w", errors.Join(errs...))
	}
	return nil
}

// noopProvider is used when observability is disabled.
type noopProvider struct{}

func newNoopProvider() *noopProvider {
	return &noopProvider{}
}

func (*noopProvider) TracerProvider() trace.TracerProvider {
	return tracenoop.NewTracerProvider()
}

func (*noopProvider) MeterProvider() metric.MeterProvider {
	return metricnoop.NewMeterProvider()
}

func (*noopProvider) Shutdown(context.Context) error   { return nil }
func (*noopProvider) ForceFlush(context.Context) error { return nil }

// Shutdown shuts provider down within timeout. A non-positive timeout means
// DefaultShutdownTimeout.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability shutdown failed: %w", err)
	}
	return nil
}
