package api

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
	"time"

	"github.com/google/uuid"
)

// Header names and defaults.
const (
	DefaultTokenHeader = "X-CSRF-Token"
	DefaultUserAgent   = "bookswap/0.1"
	requestIDHeader    = "X-Request-ID"
	contentTypeJSON    = "application/json"

	// maxErrorBody caps how much of an error response is read for its message.
	maxErrorBody = 64 * 1024
)

// TokenSource provides the anti-forgery token attached to every request.
// Defined at the consumer; tokenstore.Store is the real implementation.
type TokenSource interface {
	// Token returns the most recently known token, if any.
	Token() (string, bool)
	// RefreshAfter obtains a replacement for rejected. An empty rejected
	// value means no token was known.
	RefreshAfter(ctx context.Context, rejected string) (string, error)
	// Set records a token rotated by the server.
	Set(token string)
}

// Request describes one API call. Body must be seekable so the single
// post-refresh retry can resend it.
type Request struct {
	Method      string
	Path        string
	Body        io.ReadSeeker
	ContentType string
}

// Client is the authenticated request executor for the marketplace API.
// Credentials travel in the http.Client's cookie jar, which must be shared
// with the TokenIssuer feeding the TokenSource.
type Client struct {
	baseURL     string
	tokenHeader string
	userAgent   string
	httpClient  *http.Client
	tokens      TokenSource
	logger      *slog.Logger

	// newRequestID generates the X-Request-ID value. Tests pin it.
	newRequestID func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenHeader sets the header that carries the anti-forgery token.
func WithTokenHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.tokenHeader = name
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates an API client.
// baseURL is the server origin, e.g. "http://localhost:5555".
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		baseURL:      baseURL,
		tokenHeader:  DefaultTokenHeader,
		userAgent:    DefaultUserAgent,
		httpClient:   httpClient,
		tokens:       tokens,
		logger:       logger,
		newRequestID: func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewHTTPClient returns an http.Client that includes credentials via jar and
// bounds connection setup and whole-request time.
func NewHTTPClient(jar http.CookieJar, connectTimeout, requestTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default is always *http.Transport
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   requestTimeout,
	}
}

// Execute sends req with credentials and the current anti-forgery token.
//
// The flow is attempt → maybe-refresh → retry-once → terminal:
//  1. With no known token, the token is refreshed first; failure is returned
//     as ErrTokenUnavailable before any request is sent.
//  2. A 403 response triggers exactly one refresh and exactly one retry.
//     A second 403 is returned to the caller as-is.
//  3. Every other response is returned unchanged. Network failures are
//     wrapped in ErrRequestFailed and never retried here.
//
// The caller owns the returned response body.
func (c *Client) Execute(ctx context.Context, req Request) (*http.Response, error) {
	reqID := c.newRequestID()

	tok, ok := c.tokens.Token()
	if !ok {
		fresh, err := c.tokens.RefreshAfter(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("api: %s %s: %w", req.Method, req.Path, err)
		}

		tok = fresh
	}

	resp, err := c.attempt(ctx, req, tok, reqID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	drainAndClose(resp)

	c.logger.Info("authorization rejected, refreshing token",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("request_id", reqID),
	)

	fresh, err := c.tokens.RefreshAfter(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", req.Method, req.Path, err)
	}

	if err := rewindBody(req.Body); err != nil {
		return nil, fmt.Errorf("api: %s %s: rewinding body for retry: %w", req.Method, req.Path, err)
	}

	resp, err = c.attempt(ctx, req, fresh, reqID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("authorization rejected after token refresh",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("request_id", reqID),
		)
	}

	return resp, nil
}

// attempt executes a single HTTP request (no retry).
func (c *Client) attempt(ctx context.Context, req Request, tok, reqID string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = req.Body
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	httpReq.Header.Set(c.tokenHeader, tok)
	httpReq.Header.Set(requestIDHeader, reqID)
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", contentTypeJSON)

	if req.Body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = contentTypeJSON
		}

		httpReq.Header.Set("Content-Type", ct)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		c.logger.Warn("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("api: %s %s: %w: %w", req.Method, req.Path, ErrRequestFailed, err)
	}

	c.logger.Debug("request completed",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", reqID),
	)

	// Servers may rotate the token on any response.
	if rotated := resp.Header.Get(c.tokenHeader); rotated != "" && rotated != tok {
		c.tokens.Set(rotated)
	}

	return resp, nil
}

// do runs a JSON call through Execute and interprets the status. in is
// marshaled as the request body when non-nil; out receives the decoded 2xx
// body when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req := Request{Method: method, Path: path}

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encoding %s %s body: %w", method, path, err)
		}

		req.Body = bytes.NewReader(data)
		req.ContentType = contentTypeJSON
	}

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		return &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  sentRequestID(resp),
			Message:    errorMessage(errBody),
			Err:        sentinel,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("api: decoding %s %s response: %w", method, path, err)
	}

	return nil
}

// sentRequestID returns the X-Request-ID the response answers.
func sentRequestID(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}

	return resp.Request.Header.Get(requestIDHeader)
}

// rewindBody seeks a request body back to the start for a retry.
func rewindBody(body io.ReadSeeker) error {
	if body == nil {
		return nil
	}

	_, err := body.Seek(0, io.SeekStart)

	return err
}

// drainAndClose discards a response the caller will never see so the
// connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
