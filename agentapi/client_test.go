package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"

	"github.com/gaborage/agentlink/config"
	agenthttp "github.com/gaborage/agentlink/http"
	"github.com/gaborage/agentlink/internal/testutil"
	"github.com/gaborage/agentlink/logger"
	obstest "github.com/gaborage/agentlink/observability/testing"
)

const agentBase = "/api/v1/agents/" + testutil.TestAgentID

func newTestConfig(serverURL string) *config.Config {
	return &config.Config{
		Agent: config.AgentConfig{
			ServerURL: serverURL,
			ID:        testutil.TestAgentID,
			AuthToken: testutil.TestAuthToken,
		},
		Retry: agenthttp.RetryPolicy{
			MaxRetries:    2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
		Client: config.ClientConfig{
			Timeout:   2 * time.Second,
			RateBurst: 1,
			UserAgent: testutil.TestUserAgent,
		},
	}
}

func newTestClient(t *testing.T, cp *testutil.ControlPlane, opts ...Option) *Client {
	t.Helper()
	client, err := New(newTestConfig(cp.URL+"/"), logger.Disabled(), opts...)
	require.NoError(t, err)
	return client
}

func TestSendHeartbeat(t *testing.T) {
	cp := testutil.NewControlPlane(t, testutil.WithToken(testutil.TestAuthToken))
	cp.Respond(nethttp.MethodPost, agentBase+"/heartbeat", nethttp.StatusOK,
		`{"commands":[{"id":"c1","type":"run_script","payload":{"script":"uptime"}}],"upgradeTo":"2.0.0"}`)

	client := newTestClient(t, cp)
	hb := NewHeartbeat("1.4.2", &Metrics{CPUPercent: 12.5, RAMPercent: 40, DiskPercent: 71})

	resp, err := client.SendHeartbeat(context.Background(), hb)
	require.NoError(t, err)
	require.Len(t, resp.Commands, 1)
	assert.Equal(t, "c1", resp.Commands[0].ID)
	assert.Equal(t, "run_script", resp.Commands[0].Type)
	assert.Equal(t, "uptime", resp.Commands[0].Payload["script"])
	assert.Equal(t, "2.0.0", resp.UpgradeTo)

	reqs := cp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, nethttp.MethodPost, reqs[0].Method)
	assert.Equal(t, agentBase+"/heartbeat", reqs[0].Path)
	assert.Equal(t, "Bearer "+testutil.TestAuthToken, reqs[0].Authorization)
	assert.Equal(t, testutil.TestUserAgent, reqs[0].UserAgent)
	assert.Equal(t, mimeJSON, reqs[0].ContentType)
	assert.NotEmpty(t, reqs[0].RequestID)

	var sent Heartbeat
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, StatusOnline, sent.Status)
	assert.Equal(t, "1.4.2", sent.AgentVersion)
	assert.InDelta(t, 12.5, sent.Metrics.CPUPercent, 0)
}

func TestSendHeartbeatRetriesTransientFailures(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	cp.Script(nethttp.MethodPost, agentBase+"/heartbeat", nethttp.StatusServiceUnavailable, nethttp.StatusBadGateway)

	client := newTestClient(t, cp)
	_, err := client.SendHeartbeat(context.Background(), NewHeartbeat("1.0.0", nil))
	require.NoError(t, err)

	reqs := cp.Requests()
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Equal(t, reqs[0].RequestID, r.RequestID, "retries share one request ID")
		assert.Equal(t, reqs[0].Body, r.Body, "retries replay the same body")
	}
}

func TestSendHeartbeatExhausted(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	cp.Respond(nethttp.MethodPost, agentBase+"/heartbeat", nethttp.StatusServiceUnavailable, "")

	client := newTestClient(t, cp)
	_, err := client.SendHeartbeat(context.Background(), NewHeartbeat("1.0.0", nil))
	require.Error(t, err)

	exhausted, ok := agenthttp.IsExhausted(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, nethttp.StatusServiceUnavailable, exhausted.StatusCode)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, cp.Hits(nethttp.MethodPost, agentBase+"/heartbeat"))
	assert.Contains(t, err.Error(), "heartbeat: ")
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	cp := testutil.NewControlPlane(t, testutil.WithToken("another-token"))
	client := newTestClient(t, cp)

	_, err := client.SendHeartbeat(context.Background(), NewHeartbeat("1.0.0", nil))
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "heartbeat", statusErr.Op)
	assert.Equal(t, nethttp.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "unauthorized")
	assert.Equal(t, 1, cp.Hits(nethttp.MethodPost, agentBase+"/heartbeat"))
}

func TestPutInventory(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	client := newTestClient(t, cp)

	payload := map[string]any{"items": []string{"a", "b"}}
	for _, kind := range inventoryKinds {
		require.NoError(t, client.PutInventory(context.Background(), kind, payload), kind)
		assert.Equal(t, 1, cp.Hits(nethttp.MethodPut, agentBase+"/"+kind), kind)
	}

	err := client.PutInventory(context.Background(), "printers", payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown inventory kind")
	assert.Len(t, cp.Requests(), len(inventoryKinds))
}

func TestPutInventoryClientError(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	cp.Respond(nethttp.MethodPut, agentBase+"/software", nethttp.StatusUnprocessableEntity, `{"error":"bad payload"}`)
	client := newTestClient(t, cp)

	err := client.PutInventory(context.Background(), KindSoftware, []int{1})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "inventory.software", statusErr.Op)
	assert.Equal(t, `inventory.software: control plane returned 422 Unprocessable Entity: {"error":"bad payload"}`, err.Error())
}

func TestSubmitCommandResult(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	client := newTestClient(t, cp)

	result := &CommandResult{Status: "completed", ExitCode: 0, Stdout: "ok", DurationMs: 42}
	require.NoError(t, client.SubmitCommandResult(context.Background(), "cmd-1", result))

	reqs := cp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, agentBase+"/commands/cmd-1/result", reqs[0].Path)
	assert.JSONEq(t, `{"status":"completed","stdout":"ok","durationMs":42}`, string(reqs[0].Body))

	assert.Error(t, client.SubmitCommandResult(context.Background(), "", result))
}

func TestFetchConfigSharesInFlightRequest(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	path := agentBase + "/config"
	cp.ScriptDelay(nethttp.MethodGet, path, nethttp.StatusOK, `{"interval":"60s"}`, 300*time.Millisecond)
	cp.Respond(nethttp.MethodGet, path, nethttp.StatusOK, `{"interval":"30s"}`)

	client := newTestClient(t, cp)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]map[string]any, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.FetchConfig(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "60s", results[i]["interval"])
	}
	assert.Equal(t, 1, cp.Hits(nethttp.MethodGet, path))

	cfg, err := client.FetchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "30s", cfg["interval"])
	assert.Equal(t, 2, cp.Hits(nethttp.MethodGet, path))
}

func TestFetchConfigCancelledCallerDoesNotFailOthers(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	path := agentBase + "/config"
	cp.ScriptDelay(nethttp.MethodGet, path, nethttp.StatusOK, `{"interval":"60s"}`, 300*time.Millisecond)

	client := newTestClient(t, cp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := client.FetchConfig(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return cp.Hits(nethttp.MethodGet, path) == 1
	}, time.Second, 5*time.Millisecond)

	type fetched struct {
		cfg map[string]any
		err error
	}
	second := make(chan fetched, 1)
	go func() {
		cfg, err := client.FetchConfig(context.Background())
		second <- fetched{cfg: cfg, err: err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "60s", got.cfg["interval"])
	assert.Equal(t, 1, cp.Hits(nethttp.MethodGet, path))
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	cfg := newTestConfig(cp.URL)
	cfg.Client.RateLimit = 20
	client, err := New(cfg, nil)
	require.NoError(t, err)

	start := time.Now()
	for range 3 {
		require.NoError(t, client.PutInventory(context.Background(), KindDisks, []string{}))
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	cp := testutil.NewControlPlane(t)
	cfg := newTestConfig(cp.URL)
	cfg.Client.RateLimit = 0.01
	client, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, client.PutInventory(context.Background(), KindNetwork, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = client.PutInventory(ctx, KindNetwork, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, 1, cp.Hits(nethttp.MethodPut, agentBase+"/network"))
}

func TestNewRequiresAgentConfig(t *testing.T) {
	cfg := newTestConfig("")
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.True(t, config.IsNotConfigured(err))

	cfg = newTestConfig("https://cp.example.com")
	cfg.Agent.AuthToken = ""
	_, err = New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.auth_token")
}

func TestTransportFailureIsReportedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("debug", &buf)

	var calls int
	transport := agenthttp.DoerFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		calls++
		return nil, errors.New(testutil.TestConnectionRefused)
	})

	client, err := New(newTestConfig("https://cp.example.com"), log, WithTransport(transport))
	require.NoError(t, err)

	err = client.PutInventory(context.Background(), KindPatches, []string{"KB1"})
	require.Error(t, err)
	assert.True(t, agenthttp.IsErrorType(err, agenthttp.NetworkError))
	assert.Contains(t, err.Error(), testutil.TestConnectionRefused)
	assert.Equal(t, 3, calls)

	out := buf.String()
	assert.Contains(t, out, `"message":"control plane request failed"`)
	assert.Contains(t, out, `"Authorization":["***"]`)
	assert.Contains(t, out, `"agent_id":"`+testutil.TestAgentID+`"`)
	assert.NotContains(t, out, testutil.TestAuthToken)
}

func TestTraceContextReachesControlPlane(t *testing.T) {
	serverTP := obstest.NewTestTraceProvider()
	clientTP := obstest.NewTestTraceProvider()
	t.Cleanup(func() {
		_ = serverTP.Shutdown(context.Background())
		_ = clientTP.Shutdown(context.Background())
	})

	cp := testutil.NewControlPlane(t, testutil.WithTracerProvider(serverTP))
	executor := agenthttp.NewBuilder(logger.Disabled()).
		WithTracerProvider(clientTP).
		WithPropagator(propagation.TraceContext{}).
		Build()
	client := newTestClient(t, cp, WithExecutor(executor))

	_, err := client.FetchConfig(context.Background())
	require.NoError(t, err)

	clientSpans := clientTP.Exporter.GetSpans()
	require.Len(t, clientSpans, 1)
	assert.Equal(t, "http.retry GET", clientSpans[0].Name)

	// The server span ends after the response has been written.
	require.Eventually(t, func() bool {
		return len(serverTP.Exporter.GetSpans()) == 1
	}, time.Second, 5*time.Millisecond)
	serverSpans := serverTP.Exporter.GetSpans()
	assert.Equal(t, clientSpans[0].SpanContext.TraceID(), serverSpans[0].SpanContext.TraceID())
	assert.Equal(t, clientSpans[0].SpanContext.SpanID(), serverSpans[0].Parent.SpanID())
	assert.NotEmpty(t, cp.Requests()[0].TraceParent)
}

func TestNewHeartbeatStatus(t *testing.T) {
	assert.Equal(t, StatusOnline, NewHeartbeat("1", nil).Status)
	assert.Equal(t, StatusOnline, NewHeartbeat("1", &Metrics{CPUPercent: 90}).Status)
	assert.Equal(t, StatusWarning, NewHeartbeat("1", &Metrics{DiskPercent: 95.5}).Status)
	assert.Equal(t, StatusWarning, NewHeartbeat("1", &Metrics{RAMPercent: 91}).Status)
}
