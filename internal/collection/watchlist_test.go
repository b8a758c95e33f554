package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func TestWatchlist_AddThenRemove(t *testing.T) {
	stub := newStub()
	w := NewWatchlist(stub, nil)
	ctx := t.Context()

	require.NoError(t, w.Fetch(ctx, 1))
	assert.Empty(t, w.Entries())

	require.NoError(t, w.Add(ctx, 42, 7))
	assert.True(t, w.Contains(42))
	assert.Equal(t, []api.WatchlistEntry{{PostID: 42, TextbookID: 7}}, w.Entries())

	require.NoError(t, w.Remove(ctx, 42))
	assert.False(t, w.Contains(42))
	assert.Empty(t, w.Entries())
}

func TestWatchlist_FetchReplaces(t *testing.T) {
	stub := newStub()
	stub.watch = []api.WatchlistEntry{{PostID: 1, TextbookID: 10}, {PostID: 2, TextbookID: 20}}

	w := NewWatchlist(stub, nil)
	require.NoError(t, w.Fetch(t.Context(), 5))
	assert.Len(t, w.Entries(), 2)

	stub.watch = []api.WatchlistEntry{{PostID: 3, TextbookID: 30}}
	require.NoError(t, w.Fetch(t.Context(), 5))
	assert.Equal(t, []api.WatchlistEntry{{PostID: 3, TextbookID: 30}}, w.Entries())
}

func TestWatchlist_FailedMutationsLeaveStateUntouched(t *testing.T) {
	stub := newStub()
	stub.watch = []api.WatchlistEntry{{PostID: 1, TextbookID: 10}}

	w := NewWatchlist(stub, nil)
	require.NoError(t, w.Fetch(t.Context(), 5))

	before := w.Entries()

	stub.addErr = errBoom
	require.ErrorIs(t, w.Add(t.Context(), 42, 7), api.ErrRequestFailed)
	assert.Equal(t, before, w.Entries())

	stub.rmErr = &api.APIError{StatusCode: 404, Err: api.ErrValidationRejected}
	require.ErrorIs(t, w.Remove(t.Context(), 1), api.ErrValidationRejected)
	assert.Equal(t, before, w.Entries())

	stub.watchErr = errBoom
	require.Error(t, w.Fetch(t.Context(), 5))
	assert.Equal(t, before, w.Entries())
}

func TestWatchlist_AddDoesNotDuplicate(t *testing.T) {
	stub := newStub()
	w := NewWatchlist(stub, nil)
	require.NoError(t, w.Fetch(t.Context(), 5))

	require.NoError(t, w.Add(t.Context(), 42, 7))
	require.NoError(t, w.Add(t.Context(), 42, 7))

	assert.Len(t, w.Entries(), 1)
}

func TestWatchlist_MutatorsNeedOwner(t *testing.T) {
	stub := newStub()
	w := NewWatchlist(stub, nil)

	assert.ErrorIs(t, w.Add(t.Context(), 42, 7), ErrNoOwner)
	assert.ErrorIs(t, w.Remove(t.Context(), 42), ErrNoOwner)
	assert.Empty(t, stub.Calls(), "nothing is sent without an owner")
}

func TestWatchlist_ResetClearsAndUnbinds(t *testing.T) {
	stub := newStub()
	stub.watch = []api.WatchlistEntry{{PostID: 1, TextbookID: 10}}

	w := NewWatchlist(stub, nil)
	require.NoError(t, w.Fetch(t.Context(), 5))

	w.Reset()

	assert.Empty(t, w.Entries())
	assert.ErrorIs(t, w.Add(t.Context(), 2, 20), ErrNoOwner)
}

func TestWatchlist_EntriesIsACopy(t *testing.T) {
	stub := newStub()
	stub.watch = []api.WatchlistEntry{{PostID: 1, TextbookID: 10}}

	w := NewWatchlist(stub, nil)
	require.NoError(t, w.Fetch(t.Context(), 5))

	got := w.Entries()
	got[0].PostID = 999

	assert.True(t, w.Contains(1))
}

func TestWatchlist_BindEnablesMutatorsBeforeFetch(t *testing.T) {
	stub := newStub()
	w := NewWatchlist(stub, nil)

	w.Bind(5)
	assert.False(t, w.Loaded())

	require.NoError(t, w.Add(t.Context(), 42, 7))
	assert.True(t, w.Contains(42))

	require.NoError(t, w.Fetch(t.Context(), 5))
	assert.True(t, w.Loaded())

	w.Bind(6)
	assert.False(t, w.Loaded())
	assert.Empty(t, w.Entries(), "another owner's entries are dropped")

	w.Reset()
	assert.ErrorIs(t, w.Add(t.Context(), 42, 7), ErrNoOwner)
}
