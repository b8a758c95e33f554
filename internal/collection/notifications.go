package collection

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// DefaultDropdownSize is how many recent notifications the dropdown shows.
const DefaultDropdownSize = 3

// NotificationsAPI is the subset of the API client Notifications uses.
type NotificationsAPI interface {
	Notifications(ctx context.Context, userID int) ([]api.Notification, error)
	MarkRead(ctx context.Context, notificationID int) error
	MarkAllRead(ctx context.Context, userID int) error
}

// Notifications mirrors the user's notifications. Fetch is an authoritative
// pull that replaces local state; the unread count and the recent subset are
// derived on read and never stored.
type Notifications struct {
	client NotificationsAPI
	logger *slog.Logger

	mu    sync.Mutex
	owner int
	items []api.Notification
	epoch uint64
}

// NewNotifications creates an empty Notifications collection.
func NewNotifications(client NotificationsAPI, logger *slog.Logger) *Notifications {
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifications{client: client, logger: logger}
}

// Fetch binds ownerID and replaces local state wholesale.
func (n *Notifications) Fetch(ctx context.Context, ownerID int) error {
	n.mu.Lock()
	epoch := n.epoch
	n.mu.Unlock()

	items, err := n.client.Notifications(ctx, ownerID)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.epoch != epoch {
		return nil
	}

	n.owner = ownerID
	n.items = slices.Clone(items)

	n.logger.Debug("notifications fetched", slog.Int("owner", ownerID), slog.Int("count", len(items)))

	return nil
}

// MarkRead flags one notification read, locally after server success.
func (n *Notifications) MarkRead(ctx context.Context, id int) error {
	_, epoch, err := n.bound()
	if err != nil {
		return err
	}

	if err := n.client.MarkRead(ctx, id); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.epoch != epoch {
		return nil
	}

	for i := range n.items {
		if n.items[i].ID == id {
			n.items[i].Read = true
		}
	}

	return nil
}

// MarkAllRead flags every notification read, locally after server success.
func (n *Notifications) MarkAllRead(ctx context.Context) error {
	owner, epoch, err := n.bound()
	if err != nil {
		return err
	}

	if err := n.client.MarkAllRead(ctx, owner); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.epoch != epoch {
		return nil
	}

	for i := range n.items {
		n.items[i].Read = true
	}

	return nil
}

// List returns the notifications newest first (ties broken by ID, highest
// first).
func (n *Notifications) List() []api.Notification {
	n.mu.Lock()
	out := slices.Clone(n.items)
	n.mu.Unlock()

	slices.SortStableFunc(out, func(a, b api.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(b.ID, a.ID)
	})

	return out
}

// Unread counts notifications with Read == false.
func (n *Notifications) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := 0

	for i := range n.items {
		if !n.items[i].Read {
			count++
		}
	}

	return count
}

// Recent returns the newest limit notifications.
func (n *Notifications) Recent(limit int) []api.Notification {
	all := n.List()
	if limit < 0 || len(all) <= limit {
		return all
	}

	return all[:limit]
}

// Bind sets the owner without fetching. Binding a different owner drops the
// current notifications.
func (n *Notifications) Bind(ownerID int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.owner == ownerID {
		return
	}

	n.owner = ownerID
	n.items = nil
}

// Reset clears all state and unbinds the owner.
func (n *Notifications) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.epoch++
	n.owner = 0
	n.items = nil
}

func (n *Notifications) bound() (owner int, epoch uint64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.owner == 0 {
		return 0, 0, ErrNoOwner
	}

	return n.owner, n.epoch, nil
}
