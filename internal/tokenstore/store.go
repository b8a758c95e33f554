// Package tokenstore holds the current anti-forgery token and refreshes it,
// preferring the same-site cookie mirror over a network round-trip.
package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// Source records where the current token came from.
type Source int

const (
	SourceNone   Source = iota
	SourceIssued        // token endpoint
	SourceCookie        // mirrored from the CSRF cookie
	SourceHeader        // rotated by a response header
)

func (s Source) String() string {
	switch s {
	case SourceIssued:
		return "issued"
	case SourceCookie:
		return "cookie"
	case SourceHeader:
		return "header"
	default:
		return "none"
	}
}

// Issuer obtains tokens. api.TokenIssuer is the real implementation.
type Issuer interface {
	IssueToken(ctx context.Context) (string, error)
	CookieToken() (string, bool)
}

// Store is safe for concurrent use. Concurrent refreshes are coalesced into
// one round-trip.
type Store struct {
	issuer Issuer
	logger *slog.Logger

	mu     sync.RWMutex
	token  string
	source Source

	group singleflight.Group
}

// New creates an empty Store.
func New(issuer Issuer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{issuer: issuer, logger: logger}
}

// Token returns the current token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token, s.token != ""
}

// Source reports where the current token came from.
func (s *Store) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.source
}

// Set records a token rotated by the server. Empty values are ignored.
func (s *Store) Set(token string) {
	s.setFrom(token, SourceHeader)
}

// Restore seeds the store with a token persisted by a previous process.
func (s *Store) Restore(token string) {
	s.setFrom(token, SourceIssued)
}

func (s *Store) setFrom(token string, src Source) {
	if token == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.source = src
}

// Prime makes sure a token is known before the session check. The cookie
// mirror is preferred; the issuing endpoint is used when no cookie exists.
func (s *Store) Prime(ctx context.Context) (string, error) {
	if tok, ok := s.issuer.CookieToken(); ok {
		s.setFrom(tok, SourceCookie)
		s.logger.Debug("anti-forgery token primed", slog.String("source", SourceCookie.String()))

		return tok, nil
	}

	if tok, ok := s.Token(); ok {
		return tok, nil
	}

	return s.RefreshAfter(ctx, "")
}

// Refresh replaces the current token.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	cur, _ := s.Token()

	return s.RefreshAfter(ctx, cur)
}

// RefreshAfter replaces rejected with a new token. If the current token is
// already different from rejected, another caller refreshed it and the
// current value is returned without further work. A cookie value different
// from rejected is adopted before any network call. Failure yields
// api.ErrTokenUnavailable; the store never returns an empty token.
func (s *Store) RefreshAfter(ctx context.Context, rejected string) (string, error) {
	if cur, ok := s.Token(); ok && cur != rejected {
		return cur, nil
	}

	// The flight outlives any one caller: a waiter that gives up must not
	// fail the others that joined it.
	flightCtx := context.WithoutCancel(ctx)

	ch := s.group.DoChan("refresh", func() (any, error) {
		// Re-check inside the flight: a flight that just finished may have
		// replaced the rejected token.
		if cur, ok := s.Token(); ok && cur != rejected {
			return cur, nil
		}

		if tok, ok := s.issuer.CookieToken(); ok && tok != rejected {
			s.setFrom(tok, SourceCookie)
			s.logger.Debug("anti-forgery token refreshed", slog.String("source", SourceCookie.String()))

			return tok, nil
		}

		tok, err := s.issuer.IssueToken(flightCtx)
		if err != nil {
			s.clear(rejected)

			return "", fmt.Errorf("%w: %w", api.ErrTokenUnavailable, err)
		}

		s.setFrom(tok, SourceIssued)
		s.logger.Debug("anti-forgery token refreshed", slog.String("source", SourceIssued.String()))

		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", api.ErrTokenUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		if res.Shared {
			s.logger.Debug("joined in-flight token refresh")
		}

		return res.Val.(string), nil //nolint:forcetypeassert // flight always returns string
	}
}

// clear drops the token if it is still the rejected one.
func (s *Store) clear(rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == rejected {
		s.token = ""
		s.source = SourceNone
	}
}
