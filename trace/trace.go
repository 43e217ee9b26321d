// Package trace carries the request correlation ID that the executor stamps
// on every attempt of one logical request, so the control plane can group
// retries.
package trace

import (
	"context"
	nethttp "net/http"

	"github.com/google/uuid"
)

// HeaderRequestID is the default correlation header.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID returns a context that carries id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the ID stored by WithRequestID. Empty IDs
// count as absent.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id, id != ""
}

// EnsureRequestID returns the context's ID or a new random UUID.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// ResolveRequestID picks the ID for one logical request: the caller's header
// value, else the context's ID, else a new UUID. name defaults to
// HeaderRequestID.
func ResolveRequestID(ctx context.Context, headers nethttp.Header, name string) string {
	if name == "" {
		name = HeaderRequestID
	}
	if id := headers.Get(name); id != "" {
		return id
	}
	return EnsureRequestID(ctx)
}
