// Package api provides the authenticated HTTP client for the bookswap
// marketplace API: cookie credentials, anti-forgery token attachment, a
// single token-refresh retry on 403, and error classification.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for outcome classification.
// Use errors.Is(err, api.ErrAuthorizationRejected) to check.
var (
	ErrTokenUnavailable      = errors.New("api: anti-forgery token unavailable")
	ErrAuthorizationRejected = errors.New("api: authorization rejected")
	ErrRequestFailed         = errors.New("api: request failed")
	ErrValidationRejected    = errors.New("api: validation rejected")
)

// APIError wraps a sentinel error with the HTTP status code, the request ID
// sent with the call, and the server-supplied message.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrAuthorizationRejected
	case code >= http.StatusInternalServerError:
		return ErrRequestFailed
	case code >= http.StatusBadRequest:
		return ErrValidationRejected
	default:
		// 3xx is not expected from a JSON API; treat as a failed request.
		return ErrRequestFailed
	}
}

// errorMessage extracts the human-readable message from an error body.
// The server uses {"message": ...} for validation errors and {"error": ...}
// for framework-level rejections; anything else is returned verbatim.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}

		if parsed.Error != "" {
			return parsed.Error
		}
	}

	return strings.TrimSpace(string(body))
}

// IsRetryable reports whether err is a transient failure a caller may retry:
// a network error or a 5xx. Authorization and validation rejections are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}
