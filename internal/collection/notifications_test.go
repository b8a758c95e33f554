package collection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-cli/internal/api"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func note(id int, minutes int, read bool) api.Notification {
	return api.Notification{
		ID:        id,
		Message:   "price drop",
		PostID:    id * 10,
		CreatedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
		Read:      read,
	}
}

func ids(ns []api.Notification) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}

	return out
}

func TestNotifications_OrderingAndDerivedViews(t *testing.T) {
	stub := newStub()
	stub.notifs = []api.Notification{
		note(1, 0, false),
		note(2, 5, true),
		note(3, 5, false), // same time as 2: higher ID first
		note(4, 10, false),
	}

	n := NewNotifications(stub, nil)
	require.NoError(t, n.Fetch(t.Context(), 7))

	assert.Equal(t, []int{4, 3, 2, 1}, ids(n.List()))
	assert.Equal(t, 3, n.Unread())
	assert.Equal(t, []int{4, 3, 2}, ids(n.Recent(DefaultDropdownSize)))
	assert.Equal(t, []int{4, 3, 2, 1}, ids(n.Recent(10)))
	assert.Equal(t, []int{4, 3, 2, 1}, ids(n.Recent(-1)))
	assert.Empty(t, n.Recent(0))
}

func TestNotifications_MarkRead(t *testing.T) {
	stub := newStub()
	stub.notifs = []api.Notification{note(1, 0, false), note(2, 1, false)}

	n := NewNotifications(stub, nil)
	require.NoError(t, n.Fetch(t.Context(), 7))

	require.NoError(t, n.MarkRead(t.Context(), 1))
	assert.Equal(t, 1, n.Unread())

	require.NoError(t, n.MarkAllRead(t.Context()))
	assert.Zero(t, n.Unread())
}

func TestNotifications_FailedMarkLeavesState(t *testing.T) {
	stub := newStub()
	stub.notifs = []api.Notification{note(1, 0, false), note(2, 1, false)}

	n := NewNotifications(stub, nil)
	require.NoError(t, n.Fetch(t.Context(), 7))

	stub.markErr = errBoom

	require.Error(t, n.MarkRead(t.Context(), 1))
	require.Error(t, n.MarkAllRead(t.Context()))
	assert.Equal(t, 2, n.Unread())
}

func TestNotifications_MutatorsNeedOwner(t *testing.T) {
	n := NewNotifications(newStub(), nil)

	assert.ErrorIs(t, n.MarkRead(t.Context(), 1), ErrNoOwner)
	assert.ErrorIs(t, n.MarkAllRead(t.Context()), ErrNoOwner)
}

// A poll issued before MarkAllRead but answered after it wins: the last
// arriving response is what the user sees.
func TestNotifications_PollAnsweredAfterMarkAllReadWins(t *testing.T) {
	stub := newStub()
	stub.notifs = []api.Notification{note(1, 0, false), note(2, 1, false)}

	n := NewNotifications(stub, nil)
	require.NoError(t, n.Fetch(t.Context(), 7))

	entered := make(chan struct{})
	release := make(chan struct{})

	stub.mu.Lock()
	stub.notifsHook = func() {
		close(entered)
		<-release
	}
	stub.mu.Unlock()

	pollDone := make(chan error, 1)

	go func() { pollDone <- n.Fetch(t.Context(), 7) }()

	<-entered

	require.NoError(t, n.MarkAllRead(t.Context()))
	assert.Zero(t, n.Unread(), "mark-all applies as soon as it is confirmed")

	close(release)
	require.NoError(t, <-pollDone)

	assert.Equal(t, 2, n.Unread(), "the stale poll arrived last and replaced local state")

	stub.mu.Lock()
	stub.notifsHook = nil
	stub.mu.Unlock()

	// The next poll reconciles with the server.
	require.NoError(t, n.Fetch(t.Context(), 7))
	assert.Zero(t, n.Unread())
}

func TestNotifications_ConcurrentPollAndMarkAll(t *testing.T) {
	stub := newStub()
	stub.notifs = []api.Notification{note(1, 0, false), note(2, 1, false), note(3, 2, false)}

	n := NewNotifications(stub, nil)
	require.NoError(t, n.Fetch(t.Context(), 7))

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if i%2 == 0 {
				assert.NoError(t, n.Fetch(t.Context(), 7))
			} else {
				assert.NoError(t, n.MarkAllRead(t.Context()))
			}

			_ = n.List()
			_ = n.Unread()
		}()
	}

	wg.Wait()

	unread := n.Unread()
	assert.GreaterOrEqual(t, unread, 0)
	assert.LessOrEqual(t, unread, 3)
	assert.Len(t, n.List(), 3)
}

func TestNotifications_ResetDiscardsInFlightFetch(t *testing.T) {
	stub := newStub()
	stub.notifs = []api.Notification{note(1, 0, false)}

	n := NewNotifications(stub, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	stub.notifsHook = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)

	go func() { done <- n.Fetch(t.Context(), 7) }()

	<-entered
	n.Reset()
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, n.List(), "a response to a pre-reset request must not resurrect state")
	assert.ErrorIs(t, n.MarkAllRead(t.Context()), ErrNoOwner)
}

func TestNotifications_BindEnablesMarkAllRead(t *testing.T) {
	stub := newStub()
	n := NewNotifications(stub, nil)

	n.Bind(7)
	require.NoError(t, n.MarkAllRead(t.Context()))
	assert.Equal(t, []string{"MarkAllRead"}, stub.Calls())
}
