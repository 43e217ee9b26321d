package fixtures

import (
	"io"
	nethttp "net/http"
	"strings"
	"sync/atomic"
)

// TrackedBody is a response body that records whether it was closed.
type TrackedBody struct {
	io.Reader
	closed atomic.Bool
}

// Close marks the body as closed.
func (b *TrackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (b *TrackedBody) Closed() bool {
	return b.closed.Load()
}

// NewResponse builds a response with a TrackedBody.
func NewResponse(status int, body string) *nethttp.Response {
	resp, _ := NewTrackedResponse(status, body)
	return resp
}

// NewTrackedResponse builds a response and returns its body for close assertions.
func NewTrackedResponse(status int, body string) (*nethttp.Response, *TrackedBody) {
	tb := &TrackedBody{Reader: strings.NewReader(body)}
	return &nethttp.Response{
		StatusCode: status,
		Status:     nethttp.StatusText(status),
		Header:     make(nethttp.Header),
		Body:       tb,
	}, tb
}
