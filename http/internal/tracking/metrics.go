package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MeterName is the instrumentation scope for retry metrics
	MeterName = "agentlink/http"

	MetricAttempts  = "agentlink.http.attempts"  // Counter of sends
	MetricRetries   = "agentlink.http.retries"   // Counter of backoff waits
	MetricExhausted = "agentlink.http.exhausted" // Counter of invocations that ran out of attempts
	MetricDuration  = "agentlink.http.duration"  // Histogram in seconds, whole invocation

	attrMethod  = "http.request.method"
	attrOutcome = "agentlink.attempt.outcome"
	attrResult  = "agentlink.result"
	attrStatus  = "http.response.status_code"
)

// Attempt outcomes
const (
	OutcomeSuccess         = "success"
	OutcomeRetryableStatus = "retryable_status"
	OutcomeTransportError  = "transport_error"
)

// Invocation results
const (
	ResultResponse  = "response"
	ResultExhausted = "exhausted"
	ResultCancelled = "cancelled"
	ResultInvalid   = "invalid"
)

// Recorder records retry metrics. A nil *Recorder is a no-op.
type Recorder struct {
	attempts  metric.Int64Counter
	retries   metric.Int64Counter
	exhausted metric.Int64Counter
	duration  metric.Float64Histogram
}

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http metric %s: %v\n", metricName, err)
	}
}

// NewRecorder creates the instruments on mp, or on the global provider when mp is nil.
func NewRecorder(mp metric.MeterProvider) *Recorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)
	r := &Recorder{}

	var err error
	r.attempts, err = meter.Int64Counter(
		MetricAttempts,
		metric.WithDescription("Number of HTTP sends, by outcome"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(MetricAttempts, err)

	r.retries, err = meter.Int64Counter(
		MetricRetries,
		metric.WithDescription("Number of backoff waits before a retry"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(MetricRetries, err)

	r.exhausted, err = meter.Int64Counter(
		MetricExhausted,
		metric.WithDescription("Number of requests that ran out of attempts"),
		metric.WithUnit("{request}"),
	)
	logMetricError(MetricExhausted, err)

	r.duration, err = meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Duration of a request including all retries"),
		metric.WithUnit("s"),
	)
	logMetricError(MetricDuration, err)

	return r
}

// RecordAttempt counts one send. status is 0 when no response was received.
func (r *Recorder) RecordAttempt(ctx context.Context, method, outcome string, status int) {
	if r == nil || r.attempts == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(attrStatus, status))
	}
	r.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetry counts one backoff wait.
func (r *Recorder) RecordRetry(ctx context.Context, method string) {
	if r == nil || r.retries == nil {
		return
	}
	r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
}

// RecordResult records the end of an invocation.
func (r *Recorder) RecordResult(ctx context.Context, method, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrResult, result),
	)
	if r.duration != nil {
		r.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if result == ResultExhausted && r.exhausted != nil {
		r.exhausted.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
	}
}
