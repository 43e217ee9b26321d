package http

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/agentlink/http/internal/tracking"
	"github.com/gaborage/agentlink/logger"
	"github.com/gaborage/agentlink/trace"
)

const (
	tracerName = "agentlink/http"

	// maxDrainBytes bounds how much of a retried response body is read so the
	// connection can be reused.
	maxDrainBytes = 64 << 10
)

// Executor sends requests with retries. It holds no per-call state and is
// safe for concurrent use.
type Executor struct {
	logger          logger.Logger
	clock           Clock
	jitter          JitterSource
	tracer          oteltrace.Tracer
	propagator      propagation.TextMapPropagator
	metrics         *tracking.Recorder
	requestIDHeader string
}

// NewExecutor creates an executor with the system clock, random jitter and
// the global OpenTelemetry providers.
func NewExecutor(log logger.Logger) *Executor {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring an Executor
type Builder struct {
	logger          logger.Logger
	clock           Clock
	jitter          JitterSource
	tracerProvider  oteltrace.TracerProvider
	meterProvider   metric.MeterProvider
	propagator      propagation.TextMapPropagator
	requestIDHeader string
}

// NewBuilder creates a new executor builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Disabled()
	}
	return &Builder{
		logger:          log,
		clock:           SystemClock(),
		jitter:          RandomJitter(),
		requestIDHeader: trace.HeaderRequestID,
	}
}

// WithClock replaces the clock used for backoff waits
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithJitter replaces the randomness source used for jitter
func (b *Builder) WithJitter(src JitterSource) *Builder {
	b.jitter = src
	return b
}

// WithTracerProvider sets the provider used to create request spans
func (b *Builder) WithTracerProvider(tp oteltrace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMeterProvider sets the provider used for retry metrics
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// WithPropagator sets the propagator that injects trace context into each attempt
func (b *Builder) WithPropagator(p propagation.TextMapPropagator) *Builder {
	b.propagator = p
	return b
}

// WithRequestIDHeader sets the correlation header stamped on every attempt.
// An empty name disables stamping.
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	b.requestIDHeader = header
	return b
}

// Build creates the Executor with the configured options
func (b *Builder) Build() *Executor {
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	prop := b.propagator
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	return &Executor{
		logger:          b.logger,
		clock:           b.clock,
		jitter:          b.jitter,
		tracer:          tp.Tracer(tracerName),
		propagator:      prop,
		metrics:         tracking.NewRecorder(b.meterProvider),
		requestIDHeader: b.requestIDHeader,
	}
}

var defaultExecutor = sync.OnceValue(func() *Executor {
	return NewExecutor(logger.Disabled())
})

// Execute runs req through a shared executor that does not log.
func Execute(ctx context.Context, transport Doer, req *Request, policy *RetryPolicy) (*nethttp.Response, error) {
	return defaultExecutor().Execute(ctx, transport, req, policy)
}

// Execute sends req through transport, retrying transport errors and
// retryable statuses according to policy. A nil policy means
// DefaultRetryPolicy.
//
// The first response with a non-retryable status is returned as-is and the
// caller owns its body. Otherwise the error is one of:
//   - a ValidationError when the request or policy is malformed (never retried)
//   - ctx.Err() when the context ends while waiting or sending
//   - *ExhaustedError when the last attempt got a retryable status
//   - a NetworkError wrapping the last transport failure
func (e *Executor) Execute(ctx context.Context, transport Doer, req *Request, policy *RetryPolicy) (*nethttp.Response, error) {
	start := e.clock.Now()

	p, err := e.prepare(transport, req, policy)
	if err != nil {
		method := ""
		if req != nil {
			method = req.Method
		}
		e.metrics.RecordResult(ctx, method, tracking.ResultInvalid, e.clock.Now().Sub(start))
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "http.retry "+req.Method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL),
			attribute.Int("agentlink.retry.max_retries", p.MaxRetries),
		),
	)
	defer span.End()

	requestID := ""
	if e.requestIDHeader != "" {
		requestID = trace.ResolveRequestID(ctx, req.Headers, e.requestIDHeader)
	}

	finish := func(result string, attempts int, err error) {
		span.SetAttributes(attribute.Int("agentlink.retry.attempts", attempts))
		if err != nil && result != tracking.ResultCancelled {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.metrics.RecordResult(ctx, req.Method, result, e.clock.Now().Sub(start))
	}

	var lastErr error
	delay := p.InitialDelay

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			jittered := applyJitter(delay, p.JitterFraction, e.jitter)
			e.logger.Debug().
				Int("attempt", attempt).
				Dur("delay", jittered).
				Str("url", req.URL).
				Msg("retrying request")
			e.metrics.RecordRetry(ctx, req.Method)

			if err := e.clock.Sleep(ctx, jittered); err != nil {
				finish(tracking.ResultCancelled, attempt, err)
				return nil, err
			}
			delay = p.nextDelay(delay)
		}

		httpReq, err := e.buildRequest(ctx, req, requestID)
		if err != nil {
			finish(tracking.ResultInvalid, attempt, err)
			return nil, err
		}

		resp, err := transport.Do(httpReq)
		if err != nil {
			e.metrics.RecordAttempt(ctx, req.Method, tracking.OutcomeTransportError, 0)
			if ctxErr := ctx.Err(); ctxErr != nil {
				finish(tracking.ResultCancelled, attempt+1, ctxErr)
				return nil, ctxErr
			}
			lastErr = NewNetworkError("request execution failed", err)
			continue
		}

		if !IsRetryableStatus(resp.StatusCode) {
			e.metrics.RecordAttempt(ctx, req.Method, tracking.OutcomeSuccess, resp.StatusCode)
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			finish(tracking.ResultResponse, attempt+1, nil)
			return resp, nil
		}

		e.metrics.RecordAttempt(ctx, req.Method, tracking.OutcomeRetryableStatus, resp.StatusCode)
		discardBody(resp)
		lastErr = &ExhaustedError{StatusCode: resp.StatusCode, URL: req.URL, Attempts: attempt + 1}
	}

	e.logger.Warn().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("attempts", p.Attempts()).
		Err(lastErr).
		Msg("all retries exhausted")
	finish(tracking.ResultExhausted, p.Attempts(), lastErr)
	return nil, lastErr
}

// prepare validates inputs and resolves the effective policy.
func (e *Executor) prepare(transport Doer, req *Request, policy *RetryPolicy) (RetryPolicy, error) {
	if transport == nil {
		return RetryPolicy{}, NewValidationError("transport cannot be nil", "transport")
	}
	if req == nil {
		return RetryPolicy{}, NewValidationError("request cannot be nil", "request")
	}
	if err := validateStruct(req, "request"); err != nil {
		return RetryPolicy{}, err
	}

	p := DefaultRetryPolicy()
	if policy != nil {
		p = *policy
	}
	if err := p.Validate(); err != nil {
		return RetryPolicy{}, err
	}
	return p, nil
}

// buildRequest constructs a fresh *http.Request for one attempt. The body
// buffer is wrapped in a new reader so it can be replayed.
func (e *Executor) buildRequest(ctx context.Context, req *Request, requestID string) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, newConstructionError("request", err)
	}
	if httpReq.URL.Scheme == "" || httpReq.URL.Host == "" {
		return nil, NewValidationError("URL must be absolute", "request.URL")
	}

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if requestID != "" && httpReq.Header.Get(e.requestIDHeader) == "" {
		httpReq.Header.Set(e.requestIDHeader, requestID)
	}
	e.propagator.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	return httpReq, nil
}

// discardBody drains a bounded amount of the body and closes it.
func discardBody(resp *nethttp.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
