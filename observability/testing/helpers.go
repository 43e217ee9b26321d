// Package testing provides in-memory OpenTelemetry providers and assertions
// for the executor's spans and retry metrics.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	mp := NewTestMeterProvider()
//	exec := http.NewBuilder(log).WithTracerProvider(tp).WithMeterProvider(mp).Build()
//
//	// ... run requests ...
//
//	spans := tp.Exporter.GetSpans()
//	AssertSpanAttribute(t, &spans[0], "agentlink.retry.attempts", 2)
//	AssertMetricValue(t, mp.Collect(t), "agentlink.http.retries", int64(1))
package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const metricNotFoundErrMsg = "metric %s not found"

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports synchronously to memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	return &TestTraceProvider{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are read on demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	return &TestMeterProvider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// AssertSpanAttribute checks that span carries key with the expected value.
// Ints are compared as int64.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			assert.True(t, matchesValue(kv.Value, expected),
				"attribute %s value mismatch: got %v, want %v", key, kv.Value.Emit(), expected)
			return
		}
	}
	assert.Failf(t, "attribute not found", "span %s has no attribute %s", span.Name, key)
}

// AssertSpanStatus checks the span status code.
func AssertSpanStatus(t *testing.T, span *tracetest.SpanStub, expected codes.Code) {
	t.Helper()
	assert.Equal(t, expected, span.Status.Code, "span status code mismatch")
}

func matchesValue(v attribute.Value, expected any) bool {
	switch e := expected.(type) {
	case string:
		return v.Type() == attribute.STRING && v.AsString() == e
	case int:
		return v.Type() == attribute.INT64 && v.AsInt64() == int64(e)
	case int64:
		return v.Type() == attribute.INT64 && v.AsInt64() == e
	case bool:
		return v.Type() == attribute.BOOL && v.AsBool() == e
	case float64:
		return v.Type() == attribute.FLOAT64 && v.AsFloat64() == e
	default:
		return false
	}
}

// FindMetric returns the named metric or nil.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// AssertMetricValue checks the total of an int64 counter across all data points.
func AssertMetricValue(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected int64) {
	t.Helper()
	value, err := GetMetricSumValue(rm, metricName)
	require.NoError(t, err)
	assert.Equal(t, expected, value, "metric %s value mismatch", metricName)
}

// GetMetricSumValue totals an int64 counter across its data points.
func GetMetricSumValue(rm metricdata.ResourceMetrics, metricName string) (int64, error) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, fmt.Errorf(metricNotFoundErrMsg, metricName)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, fmt.Errorf("metric %s is %T, not an int64 sum", metricName, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total, nil
}

// GetMetricHistogramCount totals the observation count of a float64 histogram.
func GetMetricHistogramCount(rm metricdata.ResourceMetrics, metricName string) (uint64, error) {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0, fmt.Errorf(metricNotFoundErrMsg, metricName)
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0, fmt.Errorf("metric %s is %T, not a float64 histogram", metricName, m.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	return count, nil
}
