package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request when the caller's context carries no
// deadline of its own. There are no retries; a timed-out request surfaces as a
// NetworkError with Timeout set.
const DefaultTimeout = 15 * time.Second

// Request describes a single JSON-over-HTTP exchange. Body, when non-nil, is
// marshalled as the JSON request payload. Query values are appended to Path.
type Request struct {
	Method string
	Path   string
	Body   any
	Query  url.Values
}

// Client issues JSON requests against a single advisory backend. It never
// interprets payload semantics; callers decode the raw message themselves.
type Client interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
}

// Option customises the HTTP client configuration.
type Option func(*HTTPClient)

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithTimeout overrides the per-request timeout. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithLogger attaches a structured logger. Absent a logger, the client stays
// silent.
func WithLogger(logger *zap.Logger) Option {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// HTTPClient is the net/http backed Client. One instance targets one backend
// base URL and is safe for concurrent use.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Ensure the implementation satisfies the public interface.
var _ Client = (*HTTPClient)(nil)

// New constructs an HTTPClient for the given base URL.
func New(baseURL string, options ...Option) (*HTTPClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("remote: base url is required")
	}
	client := &HTTPClient{
		baseURL: trimmed,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(client)
	}
	return client, nil
}

// Do issues the request and returns the raw JSON payload. Non-2xx responses
// and transport errors surface as *NetworkError; the payload is never
// partially decoded.
func (c *HTTPClient) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	if ctx == nil {
		return nil, errors.New("remote: context is required")
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("remote: encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		netErr := &NetworkError{Err: err}
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			netErr.Timeout = true
		}
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Bool("timeout", netErr.Timeout),
			zap.Error(err))
		return nil, netErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("unexpected status",
			zap.String("method", method),
			zap.String("url", target),
			zap.Int("status", resp.StatusCode))
		return nil, &NetworkError{
			Status:  resp.StatusCode,
			Message: errorMessage(data, resp.Status),
			Body:    json.RawMessage(data),
		}
	}

	return json.RawMessage(data), nil
}

func (c *HTTPClient) buildURL(req Request) (string, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return "", errors.New("remote: request path is required")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target, nil
}

// errorMessage extracts a server-supplied error string from a failure payload
// when one is present, falling back to the HTTP status line.
func errorMessage(data []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}
	return fallback
}
