// Package client is the HTTP transport for the backend contract declared in
// package api. It attaches credentials and standard headers, paces requests,
// and hands back the raw status and body; classifying the result is the
// repository's job.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ereader/internal/api"
	"ereader/internal/platform/logger"
	"ereader/internal/platform/metrics"
	"ereader/internal/platform/tracer"
	"ereader/internal/sentinel"
	"ereader/internal/session"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20

	// HeaderAPIKey carries the project key some hosted backends require.
	HeaderAPIKey    = "apikey"
	HeaderRequestID = "X-Request-ID"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource yields the current session, if any. session.Store satisfies it.
type TokenSource interface {
	Read(ctx context.Context) (*session.Session, error)
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxBodyBytes      int64

	HTTPClient HTTPDoer
	Tokens     TokenSource
	Tracer     tracer.Tracer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Request is one invocation of an endpoint.
type Request struct {
	Endpoint api.Endpoint
	Params   map[string]string
	Query    url.Values
	// Body is JSON-encoded when non-nil.
	Body any
}

// Response is the raw HTTP outcome of a request that reached the server.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client executes contract requests against the backend.
type Client struct {
	base         *url.URL
	apiKey       string
	userAgent    string
	maxBodyBytes int64
	http         HTTPDoer
	tokens       TokenSource
	limiter      *rate.Limiter
	tracer       tracer.Tracer
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	c := &Client{
		base:         base,
		apiKey:       cfg.APIKey,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		http:         cfg.HTTPClient,
		tokens:       cfg.Tokens,
		tracer:       cfg.Tracer,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	if c.http == nil {
		c.http = NewHTTPClient(cfg.Timeout)
	}
	if c.tracer == nil {
		c.tracer = tracer.NewNoop()
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// NewHTTPClient returns an http.Client whose connect, TLS handshake and
// response header waits are each bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport, Timeout: 3 * timeout}
}

// BaseURL returns a copy of the API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Resolve interprets ref relative to the API base URL. Absolute URLs are
// returned unchanged; a leading slash resolves against the host root.
func (c *Client) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", ref, sentinel.ErrInvalidInput)
	}
	return c.base.ResolveReference(u), nil
}

// Do executes req. A non-nil error means the request never produced an HTTP
// response (transport failure, cancellation, or an unbuildable request);
// any HTTP status, including 4xx and 5xx, is returned as a Response.
func (c *Client) Do(ctx context.Context, req Request) (_ *Response, err error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "api."+req.Endpoint.Name,
		tracer.String("http.method", req.Endpoint.Method),
		tracer.String("http.route", req.Endpoint.Path),
		tracer.String("request_id", requestID),
	)
	defer func() { span.End(err) }()

	httpReq, err := c.build(ctx, req, requestID)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for request slot: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed",
			"endpoint", req.Endpoint.Name, "request_id", requestID, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes: %w", c.maxBodyBytes, sentinel.ErrTooLarge)
	}

	elapsed := time.Since(start)
	span.SetAttributes(tracer.Int("http.status_code", resp.StatusCode), tracer.Duration("elapsed_ms", elapsed))
	c.metrics.ObserveHTTPStatus(req.Endpoint.Name, resp.StatusCode)
	c.logger.DebugContext(ctx, "request completed",
		"endpoint", req.Endpoint.Name,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
		"request_id", requestID,
	)

	return &Response{StatusCode: resp.StatusCode, Body: body, RequestID: requestID}, nil
}

func (c *Client) build(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	path, err := req.Endpoint.Expand(req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrInvalidInput, err)
	}
	ref, err := url.Parse("./" + path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrInvalidInput, err)
	}
	target := c.base.ResolveReference(ref)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", req.Endpoint.Name, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Endpoint.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.Endpoint.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		httpReq.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if token := c.token(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func (c *Client) token(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	s, err := c.tokens.Read(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "session read failed, sending request without credentials", "error", err)
		return ""
	}
	if s == nil {
		return ""
	}
	return s.Token
}
