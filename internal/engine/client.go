package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

const (
	// DefaultTimeout bounds every engine request unless the caller's context
	// carries an earlier deadline.
	DefaultTimeout = 10 * time.Second

	// DefaultShards and DefaultReplicationFactor are used for collection
	// creation when the caller does not override them.
	DefaultShards            = 2
	DefaultReplicationFactor = 1

	// maxErrorBody caps how much of an undecodable engine response is
	// carried in error details.
	maxErrorBody = 512
)

// Client talks to one search engine instance.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	shards            int
	replicationFactor int
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to instrument the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCollectionDefaults sets numShards and replicationFactor for created
// collections.
func WithCollectionDefaults(shards, replicationFactor int) Option {
	return func(c *Client) {
		if shards > 0 {
			c.shards = shards
		}
		if replicationFactor > 0 {
			c.replicationFactor = replicationFactor
		}
	}
}

// New creates a Client for the engine at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ewberrors.New(ewberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("engine URL %q is not an absolute URL", baseURL), err)
	}

	// Pooled transport; the per-request deadline comes from the context so
	// a caller-supplied deadline is never overridden by a client timeout.
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		client:            &http.Client{Transport: transport},
		timeout:           DefaultTimeout,
		logger:            slog.Default(),
		shards:            DefaultShards,
		replicationFactor: DefaultReplicationFactor,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured engine base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the engine answers on the collections admin API.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListCollections(ctx)
	return err
}

// withDeadline applies the client timeout unless the context already
// carries a deadline.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do issues one HTTP request and returns the raw body on HTTP success.
// Engine-level status is judged by the caller via the response envelope.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body []byte) ([]byte, int, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, ewberrors.InternalError("failed to create engine request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, transportError(err)
	}

	c.logger.Debug("engine request",
		"method", method,
		"url", rawURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	return data, resp.StatusCode, nil
}

// transportError classifies a transport failure as timeout or unavailable.
func transportError(err error) error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timeout {
		return ewberrors.New(ewberrors.ErrCodeEngineTimeout,
			"engine request timed out", err)
	}
	return ewberrors.New(ewberrors.ErrCodeEngineUnavailable,
		"engine is unreachable", err)
}

// envelope is the common engine response header plus the optional error
// block that accompanies non-zero statuses.
type envelope struct {
	ResponseHeader responseHeader `json:"responseHeader"`
	Error          *engineError   `json:"error"`
}

type responseHeader struct {
	Status int `json:"status"`
	QTime  int `json:"QTime"`
}

type engineError struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// checkEnvelope decodes the engine response header and converts engine
// rejections and undecodable bodies into service errors. It returns the
// header so callers can log QTime.
func checkEnvelope(data []byte, httpStatus int) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, badResponse(data, err)
	}
	if env.ResponseHeader.Status == 0 && httpStatus < 400 {
		return &env, nil
	}

	msg := "engine rejected the request"
	if env.Error != nil && env.Error.Msg != "" {
		msg = env.Error.Msg
	}
	status := httpStatus
	if env.Error != nil && env.Error.Code >= 400 {
		status = env.Error.Code
	} else if status < 400 && env.ResponseHeader.Status >= 400 {
		status = env.ResponseHeader.Status
	}
	return nil, ewberrors.New(rejectionCode(status), msg, nil).
		WithDetail("engine_status", fmt.Sprintf("%d", env.ResponseHeader.Status)).
		WithDetail("http_status", fmt.Sprintf("%d", httpStatus))
}

// rejectionCode keeps the engine's verdict intact on the service surface:
// conflicts stay conflicts, unknown targets stay not-found, other 4xx
// rejections are caller mistakes. Only engine-side failures carry an
// engine code.
func rejectionCode(status int) string {
	switch {
	case status == http.StatusConflict:
		return ewberrors.ErrCodeAlreadyExists
	case status == http.StatusNotFound:
		return ewberrors.ErrCodeCollectionNotFound
	case status >= 400 && status < 500:
		return ewberrors.ErrCodeEngineDeniedRequest
	default:
		return ewberrors.ErrCodeEngineRejected
	}
}

// badResponse wraps a body the engine returned but we could not decode.
// Callers see it as a bad-request class error, same as the predecessor's
// fallback for unparseable engine output.
func badResponse(data []byte, cause error) error {
	snippet := string(data)
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}
	return ewberrors.New(ewberrors.ErrCodeEngineBadResponse,
		"engine returned an undecodable response", cause).
		WithDetail("body", snippet)
}
