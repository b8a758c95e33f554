package session

import (
	"errors"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// State is the lifecycle position of the Manager.
type State int

const (
	StateUninitialized State = iota
	StateChecking
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Lifecycle errors.
var (
	ErrAlreadyInitialized = errors.New("session: already initialized")
	ErrNotInitialized     = errors.New("session: not initialized")
	ErrNotAuthenticated   = errors.New("session: not authenticated")
)

// Snapshot is a read-only copy of the runtime state for the view layer.
type Snapshot struct {
	State         State
	User          *api.User
	Watchlist     []api.WatchlistEntry
	Notifications []api.Notification
	Unread        int
	Recent        []api.Notification
}
