package testutil

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RecordedRequest is one request as received by the control plane.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	UserAgent     string
	ContentType   string
	RequestID     string
	TraceParent   string
	Body          []byte
}

type reply struct {
	status int
	body   string
	delay  time.Duration
}

// ControlPlane is an echo server standing in for the agent control plane.
// Each route answers from a scripted status sequence and then from its final
// reply; unscripted routes answer 200 with "{}".
type ControlPlane struct {
	*httptest.Server

	token string

	mu       sync.Mutex
	scripts  map[string][]reply
	finals   map[string]reply
	hits     map[string]int
	requests []RecordedRequest
}

// Option configures a ControlPlane.
type Option func(*controlPlaneOptions)

type controlPlaneOptions struct {
	token          string
	tracerProvider trace.TracerProvider
}

// WithToken makes the control plane reject requests without "Bearer <token>".
func WithToken(token string) Option {
	return func(o *controlPlaneOptions) {
		o.token = token
	}
}

// WithTracerProvider instruments the server with otelecho using tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *controlPlaneOptions) {
		o.tracerProvider = tp
	}
}

// NewControlPlane starts a control plane that is closed when the test ends.
func NewControlPlane(t *testing.T, opts ...Option) *ControlPlane {
	t.Helper()

	o := &controlPlaneOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cp := &ControlPlane{
		token:   o.token,
		scripts: make(map[string][]reply),
		finals:  make(map[string]reply),
		hits:    make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	if o.tracerProvider != nil {
		e.Use(otelecho.Middleware("control-plane",
			otelecho.WithTracerProvider(o.tracerProvider),
			otelecho.WithPropagators(propagation.TraceContext{}),
		))
	}
	e.Any("/*", cp.handle)

	cp.Server = httptest.NewServer(e)
	t.Cleanup(cp.Close)
	return cp
}

// Script queues statuses answered, in order, by the next requests to route.
func (cp *ControlPlane) Script(method, path string, statuses ...int) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	key := routeKey(method, path)
	for _, status := range statuses {
		cp.scripts[key] = append(cp.scripts[key], reply{status: status, body: `{"error":"scripted"}`})
	}
}

// ScriptDelay queues one reply that is sent after delay.
func (cp *ControlPlane) ScriptDelay(method, path string, status int, body string, delay time.Duration) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	key := routeKey(method, path)
	cp.scripts[key] = append(cp.scripts[key], reply{status: status, body: body, delay: delay})
}

// Respond sets the reply used once the route's script is exhausted.
func (cp *ControlPlane) Respond(method, path string, status int, body string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.finals[routeKey(method, path)] = reply{status: status, body: body}
}

// Hits returns how many requests reached route.
func (cp *ControlPlane) Hits(method, path string) int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.hits[routeKey(method, path)]
}

// Requests returns a copy of every request received so far.
func (cp *ControlPlane) Requests() []RecordedRequest {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return append([]RecordedRequest(nil), cp.requests...)
}

func (cp *ControlPlane) handle(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(nethttp.StatusBadRequest, err.Error())
	}

	key := routeKey(req.Method, req.URL.Path)

	cp.mu.Lock()
	cp.hits[key]++
	cp.requests = append(cp.requests, RecordedRequest{
		Method:        req.Method,
		Path:          req.URL.Path,
		Authorization: req.Header.Get(echo.HeaderAuthorization),
		UserAgent:     req.UserAgent(),
		ContentType:   req.Header.Get(echo.HeaderContentType),
		RequestID:     req.Header.Get(echo.HeaderXRequestID),
		TraceParent:   req.Header.Get("traceparent"),
		Body:          body,
	})
	r := cp.next(key)
	cp.mu.Unlock()

	if cp.token != "" && req.Header.Get(echo.HeaderAuthorization) != "Bearer "+cp.token {
		return c.JSONBlob(nethttp.StatusUnauthorized, []byte(`{"error":"unauthorized"}`))
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-req.Context().Done():
			return nil
		}
	}

	if r.body == "" {
		return c.NoContent(r.status)
	}
	return c.JSONBlob(r.status, []byte(r.body))
}

// next pops the route's script or falls back to its final reply. Callers hold mu.
func (cp *ControlPlane) next(key string) reply {
	if queue := cp.scripts[key]; len(queue) > 0 {
		cp.scripts[key] = queue[1:]
		return queue[0]
	}
	if r, ok := cp.finals[key]; ok {
		return r
	}
	return reply{status: nethttp.StatusOK, body: "{}"}
}

func routeKey(method, path string) string {
	return method + " " + path
}
