// Package agentapi is the agent's client for its control plane. Every call is
// authenticated with the agent's bearer token, rate limited on the client side
// and sent through the retrying executor.
package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/gaborage/agentlink/config"
	agenthttp "github.com/gaborage/agentlink/http"
	"github.com/gaborage/agentlink/logger"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerAuth        = "Authorization"
	headerUserAgent   = "User-Agent"
	mimeJSON          = "application/json"

	// maxErrorBody bounds how much of a failed response is kept in a StatusError.
	maxErrorBody = 4 << 10
)

// Inventory kinds accepted by PutInventory.
const (
	KindHardware    = "hardware"
	KindSoftware    = "software"
	KindDisks       = "disks"
	KindNetwork     = "network"
	KindPatches     = "patches"
	KindConnections = "connections"
	KindEventLogs   = "eventlogs"
)

var inventoryKinds = []string{
	KindHardware, KindSoftware, KindDisks, KindNetwork, KindPatches, KindConnections, KindEventLogs,
}

// Client talks to the control plane on behalf of one agent. It is safe for
// concurrent use.
type Client struct {
	baseURL   string
	agentID   string
	token     string
	userAgent string

	transport agenthttp.Doer
	executor  *agenthttp.Executor
	policy    *agenthttp.RetryPolicy
	limiter   *rate.Limiter
	group     singleflight.Group
	log       logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the *http.Client built from the client config.
func WithTransport(transport agenthttp.Doer) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithExecutor replaces the executor built from the logger.
func WithExecutor(executor *agenthttp.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

// New creates a client from cfg. The agent section must be complete.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Agent.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Disabled()
	}

	limit := rate.Inf
	if cfg.Client.RateLimit > 0 {
		limit = rate.Limit(cfg.Client.RateLimit)
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.Agent.ServerURL, "/"),
		agentID:   cfg.Agent.ID,
		token:     cfg.Agent.AuthToken,
		userAgent: cfg.Client.UserAgent,
		policy:    cfg.RetryPolicy(),
		limiter:   rate.NewLimiter(limit, cfg.Client.RateBurst),
		log:       log.WithFields(map[string]any{"agent_id": cfg.Agent.ID}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = &nethttp.Client{Timeout: cfg.Client.Timeout}
	}
	if c.executor == nil {
		c.executor = agenthttp.NewExecutor(log)
	}
	return c, nil
}

// SendHeartbeat reports liveness and returns the commands queued for the agent.
func (c *Client) SendHeartbeat(ctx context.Context, hb *Heartbeat) (*HeartbeatResponse, error) {
	var out HeartbeatResponse
	if err := c.call(ctx, "heartbeat", nethttp.MethodPost, c.agentPath("heartbeat"), hb, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutInventory replaces one inventory collection of the agent.
func (c *Client) PutInventory(ctx context.Context, kind string, payload any) error {
	if !slices.Contains(inventoryKinds, kind) {
		return fmt.Errorf("unknown inventory kind %q (must be one of: %s)", kind, strings.Join(inventoryKinds, ", "))
	}
	return c.call(ctx, "inventory."+kind, nethttp.MethodPut, c.agentPath(kind), payload, nil)
}

// SubmitCommandResult reports the outcome of a command received in a heartbeat.
func (c *Client) SubmitCommandResult(ctx context.Context, commandID string, result *CommandResult) error {
	if commandID == "" {
		return errors.New("command ID is required")
	}
	path := c.agentPath("commands", url.PathEscape(commandID), "result")
	return c.call(ctx, "command_result", nethttp.MethodPost, path, result, nil)
}

// FetchConfig returns the configuration document the control plane holds for
// the agent. Concurrent callers share a single request; a caller that gives
// up leaves the shared request running for the others.
func (c *Client) FetchConfig(ctx context.Context) (map[string]any, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("config", func() (any, error) {
		var out map[string]any
		if err := c.call(shared, "config", nethttp.MethodGet, c.agentPath("config"), nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("config: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug().Msg("config fetch shared with concurrent caller")
		}
		return res.Val.(map[string]any), nil
	}
}

func (c *Client) agentPath(parts ...string) string {
	return c.baseURL + "/api/v1/agents/" + url.PathEscape(c.agentID) + "/" + strings.Join(parts, "/")
}

// call sends one logical request. in is encoded as JSON when not nil; a 2xx
// body is decoded into out when out is not nil.
func (c *Client) call(ctx context.Context, op, method, target string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	headers := nethttp.Header{}
	headers.Set(headerAuth, "Bearer "+c.token)
	headers.Set(headerAccept, mimeJSON)
	headers.Set(headerUserAgent, c.userAgent)
	if body != nil {
		headers.Set(headerContentType, mimeJSON)
	}

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("url", target).
		Any("headers", headers).
		Msg("sending control plane request")

	resp, err := c.executor.Execute(ctx, c.transport, &agenthttp.Request{
		Method:  method,
		URL:     target,
		Body:    body,
		Headers: headers,
	}, c.policy)
	if err != nil {
		c.log.Error().Str("op", op).Str("url", target).Err(err).Msg("control plane request failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if !agenthttp.IsSuccessStatus(resp.StatusCode) {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
