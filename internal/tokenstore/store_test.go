package tokenstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// fakeIssuer hands out tokens from a list and mirrors a cookie on demand.
type fakeIssuer struct {
	mu     sync.Mutex
	cookie string
	issued []string
	err    error
	calls  atomic.Int32

	// gate, when set, blocks IssueToken until closed; entered is signaled
	// on entry.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeIssuer) IssueToken(ctx context.Context) (string, error) {
	f.calls.Add(1)

	if f.entered != nil {
		f.entered <- struct{}{}
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}

	if len(f.issued) == 0 {
		return "", errors.New("no tokens left")
	}

	tok := f.issued[0]
	f.issued = f.issued[1:]

	return tok, nil
}

func (f *fakeIssuer) CookieToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cookie, f.cookie != ""
}

func TestStore_EmptyByDefault(t *testing.T) {
	s := New(&fakeIssuer{}, nil)

	tok, ok := s.Token()
	assert.False(t, ok)
	assert.Empty(t, tok)
	assert.Equal(t, SourceNone, s.Source())
}

func TestStore_SetIgnoresEmpty(t *testing.T) {
	s := New(&fakeIssuer{}, nil)

	s.Set("rotated")
	s.Set("")

	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "rotated", tok)
	assert.Equal(t, SourceHeader, s.Source())
}

func TestPrime_PrefersCookie(t *testing.T) {
	issuer := &fakeIssuer{cookie: "from-cookie", issued: []string{"from-endpoint"}}
	s := New(issuer, nil)

	tok, err := s.Prime(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", tok)
	assert.Equal(t, SourceCookie, s.Source())
	assert.Zero(t, issuer.calls.Load())
}

func TestPrime_KeepsRestoredToken(t *testing.T) {
	issuer := &fakeIssuer{issued: []string{"from-endpoint"}}
	s := New(issuer, nil)
	s.Restore("persisted")

	tok, err := s.Prime(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
	assert.Zero(t, issuer.calls.Load())
}

func TestPrime_FetchesWhenNothingKnown(t *testing.T) {
	issuer := &fakeIssuer{issued: []string{"from-endpoint"}}
	s := New(issuer, nil)

	tok, err := s.Prime(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "from-endpoint", tok)
	assert.Equal(t, SourceIssued, s.Source())
	assert.Equal(t, int32(1), issuer.calls.Load())
}

func TestRefreshAfter_AdoptsDifferentCookie(t *testing.T) {
	issuer := &fakeIssuer{cookie: "cookie-2", issued: []string{"endpoint"}}
	s := New(issuer, nil)
	s.Restore("old")

	tok, err := s.RefreshAfter(t.Context(), "old")
	require.NoError(t, err)
	assert.Equal(t, "cookie-2", tok)
	assert.Zero(t, issuer.calls.Load(), "cookie mirror avoids the round-trip")
}

func TestRefreshAfter_SameCookieGoesToNetwork(t *testing.T) {
	issuer := &fakeIssuer{cookie: "old", issued: []string{"endpoint"}}
	s := New(issuer, nil)
	s.Restore("old")

	tok, err := s.RefreshAfter(t.Context(), "old")
	require.NoError(t, err)
	assert.Equal(t, "endpoint", tok)
	assert.Equal(t, SourceIssued, s.Source())
	assert.Equal(t, int32(1), issuer.calls.Load())
}

func TestRefreshAfter_AlreadyReplaced(t *testing.T) {
	issuer := &fakeIssuer{issued: []string{"endpoint"}}
	s := New(issuer, nil)
	s.Set("newer")

	tok, err := s.RefreshAfter(t.Context(), "old")
	require.NoError(t, err)
	assert.Equal(t, "newer", tok)
	assert.Zero(t, issuer.calls.Load())
}

func TestRefresh_ReplacesCurrent(t *testing.T) {
	issuer := &fakeIssuer{issued: []string{"t2"}}
	s := New(issuer, nil)
	s.Restore("t1")

	tok, err := s.Refresh(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
}

func TestRefreshAfter_FailureIsTokenUnavailable(t *testing.T) {
	issuer := &fakeIssuer{err: errors.New("connection refused")}
	s := New(issuer, nil)
	s.Restore("old")

	tok, err := s.RefreshAfter(t.Context(), "old")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTokenUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, tok)

	_, ok := s.Token()
	assert.False(t, ok, "the rejected token must not be handed out again")
}

func TestRefreshAfter_CoalescesConcurrentCallers(t *testing.T) {
	issuer := &fakeIssuer{
		issued:  []string{"fresh", "unexpected"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 10),
	}
	s := New(issuer, nil)
	s.Restore("stale")

	const callers = 8

	var wg sync.WaitGroup

	results := make([]string, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tok, err := s.RefreshAfter(t.Context(), "stale")
			assert.NoError(t, err)
			results[i] = tok
		}()
	}

	<-issuer.entered
	close(issuer.gate)
	wg.Wait()

	assert.Equal(t, int32(1), issuer.calls.Load(), "one round-trip for all callers")

	for _, tok := range results {
		assert.Equal(t, "fresh", tok)
	}
}

func TestRefreshAfter_CancelledCallerDoesNotFailOthers(t *testing.T) {
	issuer := &fakeIssuer{
		issued:  []string{"fresh", "unexpected"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 10),
	}
	s := New(issuer, nil)
	s.Restore("stale")

	firstCtx, cancelFirst := context.WithCancel(t.Context())
	firstErr := make(chan error, 1)

	go func() {
		_, err := s.RefreshAfter(firstCtx, "stale")
		firstErr <- err
	}()

	<-issuer.entered

	second := make(chan string, 1)

	go func() {
		tok, err := s.RefreshAfter(t.Context(), "stale")
		assert.NoError(t, err)
		second <- tok
	}()

	cancelFirst()

	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTokenUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	// The issuing request is still in flight after its first caller left.
	close(issuer.gate)

	assert.Equal(t, "fresh", <-second)
	assert.Equal(t, int32(1), issuer.calls.Load(), "the waiter joined the original flight")

	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "fresh", tok)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "none", SourceNone.String())
	assert.Equal(t, "issued", SourceIssued.String())
	assert.Equal(t, "cookie", SourceCookie.String())
	assert.Equal(t, "header", SourceHeader.String())
}
