package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Token issuance endpoint and defaults.
const (
	TokenPath          = "/api/csrf-token"
	DefaultTokenCookie = "csrf_token"
)

// TokenIssuer obtains anti-forgery tokens, either from the issuing endpoint
// or mirrored from the same-site CSRF cookie. It must share its http.Client
// (and therefore its cookie jar) with the Client.
type TokenIssuer struct {
	base       *url.URL
	httpClient *http.Client
	cookieName string
	logger     *slog.Logger
}

// NewTokenIssuer creates an issuer for the server at baseURL.
func NewTokenIssuer(baseURL string, httpClient *http.Client, cookieName string, logger *slog.Logger) (*TokenIssuer, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parsing base URL %q: %w", baseURL, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if cookieName == "" {
		cookieName = DefaultTokenCookie
	}

	return &TokenIssuer{
		base:       base,
		httpClient: httpClient,
		cookieName: cookieName,
		logger:     logger,
	}, nil
}

// IssueToken fetches a fresh token from the issuing endpoint. The endpoint is
// exempt from the anti-forgery check, so no token header is sent.
func (i *TokenIssuer) IssueToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.base.JoinPath(TokenPath).String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("api: creating token request: %w", err)
	}

	req.Header.Set("Accept", contentTypeJSON)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api: token request: %w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var parsed struct {
		Token string `json:"csrf_token"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("api: decoding token response: %w", err)
	}

	if parsed.Token == "" {
		return "", errors.New("api: token response carried no csrf_token")
	}

	i.logger.Debug("anti-forgery token issued")

	return parsed.Token, nil
}

// CookieToken returns the token mirrored in the CSRF cookie, if the jar
// holds one for the server origin.
func (i *TokenIssuer) CookieToken() (string, bool) {
	if i.httpClient.Jar == nil {
		return "", false
	}

	for _, c := range i.httpClient.Jar.Cookies(i.base) {
		if c.Name == i.cookieName && c.Value != "" {
			return c.Value, true
		}
	}

	return "", false
}
