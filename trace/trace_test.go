package trace

import (
	"context"
	nethttp "net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDContext(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = RequestIDFromContext(WithRequestID(context.Background(), ""))
	assert.False(t, ok, "empty IDs are ignored")

	id, ok := RequestIDFromContext(WithRequestID(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestEnsureRequestID(t *testing.T) {
	assert.Equal(t, "req-1", EnsureRequestID(WithRequestID(context.Background(), "req-1")))

	first := EnsureRequestID(context.Background())
	second := EnsureRequestID(context.Background())
	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func header(name, value string) nethttp.Header {
	h := nethttp.Header{}
	h.Set(name, value)
	return h
}

func TestResolveRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "from-context")

	tests := []struct {
		name    string
		ctx     context.Context
		headers nethttp.Header
		header  string
		want    string
	}{
		{name: "header wins", ctx: ctx, headers: header(HeaderRequestID, "from-header"), want: "from-header"},
		{name: "custom header", ctx: ctx, headers: header("X-Correlation-ID", "corr"), header: "X-Correlation-ID", want: "corr"},
		{name: "custom header ignores default", ctx: ctx, headers: header(HeaderRequestID, "other"), header: "X-Correlation-ID", want: "from-context"},
		{name: "context fallback", ctx: ctx, headers: nil, header: HeaderRequestID, want: "from-context"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRequestID(tt.ctx, tt.headers, tt.header))
		})
	}

	generated := ResolveRequestID(context.Background(), nethttp.Header{}, "")
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}
