// Package collection keeps server-backed collections in memory. Every
// mutation is confirm-then-apply: local state changes only after the server
// reports success, and responses are applied in arrival order.
package collection

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// ErrNoOwner is returned by mutators before Bind or Fetch has bound an owner.
var ErrNoOwner = errors.New("collection: no owner bound")

// WatchlistAPI is the subset of the API client the Watchlist uses.
type WatchlistAPI interface {
	Watchlist(ctx context.Context, userID int) ([]api.WatchlistEntry, error)
	AddWatch(ctx context.Context, userID, postID, textbookID int) (*api.WatchlistEntry, error)
	RemoveWatch(ctx context.Context, userID, postID int) error
}

// Watchlist tracks the posts the session's user watches.
type Watchlist struct {
	client WatchlistAPI
	logger *slog.Logger

	mu      sync.Mutex
	owner   int
	entries []api.WatchlistEntry
	loaded  bool
	// epoch increments on Reset; responses to requests issued in an older
	// epoch are discarded.
	epoch uint64
}

// NewWatchlist creates an empty Watchlist.
func NewWatchlist(client WatchlistAPI, logger *slog.Logger) *Watchlist {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watchlist{client: client, logger: logger}
}

// Fetch binds ownerID and replaces local state with the server's list.
func (w *Watchlist) Fetch(ctx context.Context, ownerID int) error {
	epoch := w.begin()

	entries, err := w.client.Watchlist(ctx, ownerID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.epoch != epoch {
		return nil
	}

	w.owner = ownerID
	w.entries = slices.Clone(entries)
	w.loaded = true

	w.logger.Debug("watchlist fetched", slog.Int("owner", ownerID), slog.Int("count", len(entries)))

	return nil
}

// Bind sets the owner without fetching, so mutators work before the first
// successful Fetch. Binding a different owner drops the current entries.
func (w *Watchlist) Bind(ownerID int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.owner == ownerID {
		return
	}

	w.owner = ownerID
	w.entries = nil
	w.loaded = false
}

// Loaded reports whether a Fetch has completed since the last Reset or
// owner change.
func (w *Watchlist) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.loaded
}

// Add watches postID. The server's canonical entry is appended on success.
func (w *Watchlist) Add(ctx context.Context, postID, textbookID int) error {
	owner, epoch, err := w.bound()
	if err != nil {
		return err
	}

	entry, err := w.client.AddWatch(ctx, owner, postID, textbookID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.epoch != epoch {
		return nil
	}

	// The server may answer an add of an already watched post with the
	// existing entry; replace rather than duplicate.
	w.entries = slices.DeleteFunc(w.entries, func(e api.WatchlistEntry) bool { return e.PostID == entry.PostID })
	w.entries = append(w.entries, *entry)

	return nil
}

// Remove stops watching postID. The entry is filtered out on success.
func (w *Watchlist) Remove(ctx context.Context, postID int) error {
	owner, epoch, err := w.bound()
	if err != nil {
		return err
	}

	if err := w.client.RemoveWatch(ctx, owner, postID); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.epoch != epoch {
		return nil
	}

	w.entries = slices.DeleteFunc(w.entries, func(e api.WatchlistEntry) bool { return e.PostID == postID })

	return nil
}

// Entries returns a copy of the current entries.
func (w *Watchlist) Entries() []api.WatchlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.entries)
}

// Contains reports whether postID is watched.
func (w *Watchlist) Contains(postID int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.ContainsFunc(w.entries, func(e api.WatchlistEntry) bool { return e.PostID == postID })
}

// Reset clears all state and unbinds the owner.
func (w *Watchlist) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.epoch++
	w.owner = 0
	w.entries = nil
	w.loaded = false
}

func (w *Watchlist) begin() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.epoch
}

func (w *Watchlist) bound() (owner int, epoch uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.owner == 0 {
		return 0, 0, ErrNoOwner
	}

	return w.owner, w.epoch, nil
}
