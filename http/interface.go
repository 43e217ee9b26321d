package http

import (
	"context"
	nethttp "net/http"
	"time"
)

// Doer sends a single HTTP request. *net/http.Client satisfies it.
type Doer interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *nethttp.Request) (*nethttp.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

// Request describes an HTTP call that may be sent several times.
// Body is a materialized buffer so it can be replayed on every attempt;
// nil means no body.
type Request struct {
	Method  string `validate:"required"`
	URL     string `validate:"required"`
	Body    []byte
	Headers nethttp.Header
}

// Clock abstracts time so backoff waits can be faked in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// JitterSource supplies the randomness used to spread retry delays.
type JitterSource interface {
	// Symmetric returns a uniformly distributed value in [-1, 1].
	Symmetric() float64
}

// JitterFunc adapts a function to the JitterSource interface.
type JitterFunc func() float64

// Symmetric calls f().
func (f JitterFunc) Symmetric() float64 {
	return f()
}
