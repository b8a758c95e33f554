// Package session owns the authenticated-user identity and drives session
// discovery, login/logout transitions, periodic re-validation, collection
// hydration, and the notification poller.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookswap/bookswap-cli/internal/api"
	"github.com/bookswap/bookswap-cli/internal/collection"
	"github.com/bookswap/bookswap-cli/internal/poller"
)

// Defaults for background work.
const (
	DefaultPollInterval       = 30 * time.Second
	DefaultRevalidateInterval = 5 * time.Minute
)

// Client is everything the runtime needs from the API. *api.Client
// satisfies it.
type Client interface {
	CheckSession(ctx context.Context) (*api.User, error)
	Login(ctx context.Context, creds api.Credentials) (*api.User, error)
	Signup(ctx context.Context, reg api.Registration) (*api.User, error)
	Logout(ctx context.Context) error
	DeleteUser(ctx context.Context, userID int) error

	collection.WatchlistAPI
	collection.NotificationsAPI
	collection.PostsAPI
	collection.CommentsAPI
	collection.TextbooksAPI
}

// TokenPrimer makes sure an anti-forgery token is known before the session check.
type TokenPrimer interface {
	Prime(ctx context.Context) (string, error)
}

// Options tune the Manager. Zero values select defaults.
type Options struct {
	PollInterval       time.Duration
	RevalidateInterval time.Duration
	DropdownSize       int
	Logger             *slog.Logger
}

// Manager is the session runtime: one instance per process, with an
// explicit Initialize/Dispose lifecycle.
type Manager struct {
	client Client
	tokens TokenPrimer
	logger *slog.Logger

	watchlist     *collection.Watchlist
	notifications *collection.Notifications
	posts         *collection.Posts
	comments      *collection.Comments
	catalog       *collection.Catalog

	notifPoller  *poller.Poller
	revalidator  *poller.Poller
	dropdownSize int

	// lifeCtx bounds background work; cancelled by Dispose.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu       sync.Mutex
	state    State
	user     *api.User
	gen      uint64 // bumped on every session change
	disposed bool
}

// New creates an uninitialized Manager.
func New(client Client, tokens TokenPrimer, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.RevalidateInterval <= 0 {
		opts.RevalidateInterval = DefaultRevalidateInterval
	}

	if opts.DropdownSize <= 0 {
		opts.DropdownSize = collection.DefaultDropdownSize
	}

	lifeCtx, lifeCancel := context.WithCancel(context.Background())

	m := &Manager{
		client:        client,
		tokens:        tokens,
		logger:        logger,
		watchlist:     collection.NewWatchlist(client, logger),
		notifications: collection.NewNotifications(client, logger),
		posts:         collection.NewPosts(client, logger),
		comments:      collection.NewComments(client, logger),
		catalog:       collection.NewCatalog(client),
		dropdownSize:  opts.DropdownSize,
		lifeCtx:       lifeCtx,
		lifeCancel:    lifeCancel,
	}

	m.notifPoller = poller.New("notifications", opts.PollInterval, m.pollNotifications, logger)
	m.revalidator = poller.New("revalidate", opts.RevalidateInterval, m.revalidate, logger)
	m.posts.OnChange(m.refreshNotifications)

	return m
}

// Initialize discovers an existing session. It runs once: the token is
// primed (cookie mirror preferred), then the session is checked. A rejected
// check leaves the Manager Anonymous and is not an error; any other failure
// also leaves it Anonymous and is returned.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}

	m.state = StateChecking
	m.mu.Unlock()

	if _, err := m.tokens.Prime(ctx); err != nil {
		m.settleAnonymous()
		return fmt.Errorf("session: obtaining token: %w", err)
	}

	user, err := m.client.CheckSession(ctx)
	if err != nil {
		m.settleAnonymous()

		if errors.Is(err, api.ErrAuthorizationRejected) {
			m.logger.Info("no active session")
			return nil
		}

		return fmt.Errorf("session: probing session: %w", err)
	}

	return m.establish(ctx, user)
}

// Login exchanges credentials for a session. On rejection it returns false
// with the typed error and leaves any existing session untouched. A true
// result with a non-nil error means the session was established but
// hydration failed.
func (m *Manager) Login(ctx context.Context, creds api.Credentials) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}

	user, err := m.client.Login(ctx, creds)
	if err != nil {
		m.logger.Info("login rejected", slog.String("error", err.Error()))
		return false, err
	}

	return true, m.establish(ctx, user)
}

// Signup registers an account and establishes its session, with the same
// result contract as Login.
func (m *Manager) Signup(ctx context.Context, reg api.Registration) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}

	user, err := m.client.Signup(ctx, reg)
	if err != nil {
		m.logger.Info("signup rejected", slog.String("error", err.Error()))
		return false, err
	}

	return true, m.establish(ctx, user)
}

// Logout posts the logout request, then clears the session, collections and
// background work regardless of the outcome. A failed request is still
// returned.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.client.Logout(ctx)

	m.endSession()

	if err != nil {
		m.logger.Warn("logout request failed, local session cleared", slog.String("error", err.Error()))
		return fmt.Errorf("session: logout request: %w", err)
	}

	m.logger.Info("logged out")

	return nil
}

// DeleteAccount deletes the signed-in account and ends the session.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	user, ok := m.User()
	if !ok {
		return ErrNotAuthenticated
	}

	if err := m.client.DeleteUser(ctx, user.ID); err != nil {
		return err
	}

	m.endSession()
	m.logger.Info("account deleted", slog.Int("user_id", user.ID))

	return nil
}

// Dispose stops all background work. Safe to call more than once.
func (m *Manager) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()

	m.lifeCancel()
	m.stopBackground()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// User returns the signed-in user.
func (m *Manager) User() (api.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return api.User{}, false
	}

	return *m.user, true
}

// Snapshot returns a consistent-enough copy of session and collection state.
// Each collection is copied under its own lock.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	snap := Snapshot{State: m.state}

	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	m.mu.Unlock()

	snap.Watchlist = m.watchlist.Entries()
	snap.Notifications = m.notifications.List()
	snap.Unread = m.notifications.Unread()
	snap.Recent = m.notifications.Recent(m.dropdownSize)

	return snap
}

// Watchlist returns the watchlist synchronizer.
func (m *Manager) Watchlist() *collection.Watchlist { return m.watchlist }

// Notifications returns the notifications synchronizer.
func (m *Manager) Notifications() *collection.Notifications { return m.notifications }

// Posts returns the posts cache.
func (m *Manager) Posts() *collection.Posts { return m.posts }

// Comments returns the comment cache.
func (m *Manager) Comments() *collection.Comments { return m.comments }

// Catalog returns the textbook catalog.
func (m *Manager) Catalog() *collection.Catalog { return m.catalog }

// Polling reports whether the notification poller is running.
func (m *Manager) Polling() bool { return m.notifPoller.Running() }

// SetPollInterval changes the notification poll interval, restarting a
// running poller.
func (m *Manager) SetPollInterval(d time.Duration) {
	if d > 0 {
		m.notifPoller.SetInterval(m.lifeCtx, d)
	}
}

// SetRevalidateInterval changes the session re-validation interval.
func (m *Manager) SetRevalidateInterval(d time.Duration) {
	if d > 0 {
		m.revalidator.SetInterval(m.lifeCtx, d)
	}
}

func (m *Manager) ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized || m.state == StateChecking {
		return ErrNotInitialized
	}

	return nil
}

// establish installs user as the session, hydrates the user-scoped
// collections and starts background work.
func (m *Manager) establish(ctx context.Context, user *api.User) error {
	u := *user

	m.mu.Lock()
	replacing := m.user != nil
	m.state = StateAuthenticated
	m.user = &u
	m.gen++
	m.mu.Unlock()

	// Background work of a previous session (or a demoted one still winding
	// down) must be gone before the new session starts its own.
	m.stopBackground()

	if replacing {
		m.watchlist.Reset()
		m.notifications.Reset()
	}

	// Bound before hydrating so a failed fetch leaves the collections usable.
	m.watchlist.Bind(u.ID)
	m.notifications.Bind(u.ID)

	m.logger.Info("session established",
		slog.Int("user_id", u.ID),
		slog.String("email", u.Email),
	)

	err := m.hydrate(ctx, u.ID)

	m.startBackground()

	return err
}

// hydrate fetches the watchlist and notifications concurrently.
func (m *Manager) hydrate(ctx context.Context, userID int) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := m.watchlist.Fetch(gctx, userID); err != nil {
			return fmt.Errorf("session: hydrating watchlist: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := m.notifications.Fetch(gctx, userID); err != nil {
			return fmt.Errorf("session: hydrating notifications: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		m.logger.Warn("hydration failed", slog.String("error", err.Error()))
		return err
	}

	return nil
}

func (m *Manager) startBackground() {
	m.mu.Lock()
	disposed := m.disposed
	m.mu.Unlock()

	if disposed {
		return
	}

	m.notifPoller.Start(m.lifeCtx)
	m.revalidator.Start(m.lifeCtx)
}

func (m *Manager) stopBackground() {
	m.notifPoller.Stop()
	m.revalidator.Stop()
}

// settleAnonymous finishes Initialize without a session.
func (m *Manager) settleAnonymous() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateAnonymous
	m.user = nil
}

// endSession clears the session unconditionally.
func (m *Manager) endSession() {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.state = StateAnonymous
	}

	m.user = nil
	m.gen++
	m.mu.Unlock()

	m.stopBackground()
	m.watchlist.Reset()
	m.notifications.Reset()
}

// demote ends the session of generation gen after the server stopped
// recognizing it. It runs on the re-validator's goroutine, so it stops only
// the notification poller; the re-validator exits by returning ErrStop.
func (m *Manager) demote(gen uint64) bool {
	m.mu.Lock()
	if m.gen != gen || m.state != StateAuthenticated {
		m.mu.Unlock()
		return false
	}

	m.state = StateAnonymous
	m.user = nil
	m.gen++
	m.mu.Unlock()

	m.notifPoller.Stop()
	m.watchlist.Reset()
	m.notifications.Reset()

	return true
}

func (m *Manager) current() (userID int, gen uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated || m.user == nil {
		return 0, m.gen, false
	}

	return m.user.ID, m.gen, true
}

// pollNotifications is the notification poller tick. A watchlist that
// failed to hydrate is fetched again on the same tick.
func (m *Manager) pollNotifications(ctx context.Context) error {
	userID, _, ok := m.current()
	if !ok {
		return poller.ErrStop
	}

	if !m.watchlist.Loaded() {
		if err := m.watchlist.Fetch(ctx, userID); err != nil {
			m.logger.Warn("watchlist fetch failed", slog.String("error", err.Error()))
		}
	}

	return m.notifications.Fetch(ctx, userID)
}

// revalidate is the re-validator tick. An authorization rejection demotes
// the session; network failures are reported and the session kept.
func (m *Manager) revalidate(ctx context.Context) error {
	userID, gen, ok := m.current()
	if !ok {
		return poller.ErrStop
	}

	user, err := m.client.CheckSession(ctx)
	if ctx.Err() != nil {
		return nil //nolint:nilerr // cancellation is a normal stop
	}

	if err != nil {
		if errors.Is(err, api.ErrAuthorizationRejected) {
			if m.demote(gen) {
				m.logger.Warn("session expired", slog.Int("user_id", userID))
			}

			return poller.ErrStop
		}

		return fmt.Errorf("session: revalidating: %w", err)
	}

	m.mu.Lock()
	if m.gen == gen && m.user != nil && m.user.ID == user.ID {
		u := *user
		m.user = &u
	}
	m.mu.Unlock()

	return nil
}

// refreshNotifications re-fetches notifications when a session exists.
func (m *Manager) refreshNotifications(ctx context.Context) error {
	userID, _, ok := m.current()
	if !ok {
		return nil
	}

	return m.notifications.Fetch(ctx, userID)
}
