package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bookswap/bookswap-cli/internal/api"
	"github.com/bookswap/bookswap-cli/internal/config"
	"github.com/bookswap/bookswap-cli/internal/session"
	"github.com/bookswap/bookswap-cli/internal/sessionfile"
)

// watchRefresh is how often the watch command checks the runtime for
// notifications the poller has pulled in.
const watchRefresh = time.Second

var errSessionEnded = errors.New("session ended, run 'bookswap login' to sign in again")

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay signed in and print notifications as they arrive",
		Long: `Keep the session alive, poll for notifications and print each new one.
Changes to poll_interval and revalidate_interval in the config file apply
without a restart. Stop with Ctrl-C. One watcher runs per account and
server; a second one for the same account exits with an error.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.AddCommand(newWatchReloadCmd())

	return cmd
}

func newWatchReloadCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Make the running watcher re-read its config now",
		Long: `Signal the watcher of one account to re-read its config. The account
defaults to the one saved in the session file for the configured server.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			server, who, err := reloadTarget(resolvedCfg, email)
			if err != nil {
				return err
			}

			rec, err := signalWatcher(watchLockPath(config.DefaultWatchersDir(), server, who))
			if err != nil {
				return err
			}

			statusf(flagQuiet, "Reload requested for %s.\n", rec.describe())

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account whose watcher to signal")

	return cmd
}

// reloadTarget resolves which watcher `watch reload` signals: the account
// given by email, else the one saved for cfg's server.
func reloadTarget(cfg *config.Config, email string) (*url.URL, string, error) {
	if cfg == nil {
		return nil, "", errors.New("no configuration loaded")
	}

	server, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing server_url: %w", err)
	}

	if email != "" {
		return server, email, nil
	}

	var sf *sessionfile.File
	if cfg.SessionFile != "" {
		if sf, err = sessionfile.Load(cfg.SessionFile); err != nil {
			return nil, "", err
		}
	}

	if sf == nil || !sf.Matches(server) || sf.Meta["email"] == "" {
		return nil, "", fmt.Errorf("no saved account for %s, pass --email", sessionfile.Origin(server))
	}

	return server, sf.Meta["email"], nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	user, err := cc.requireUser()
	if err != nil {
		return err
	}

	release, err := acquireWatchLock(watchLockPath(config.DefaultWatchersDir(), cc.server, user.Email), watchRecord{
		PID:       os.Getpid(),
		Server:    sessionfile.Origin(cc.server),
		UserID:    user.ID,
		Email:     user.Email,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	defer release()

	cc.Statusf("Watching notifications for %s (every %s). Press Ctrl-C to stop.\n",
		user.Email, cc.Cfg.PollEvery())

	holder := config.NewHolder(cc.Cfg, resolvedCfgPath, resolvedEnv, resolvedCLI)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return config.Watch(gctx, holder, func(r config.Reload) {
			applyReload(cc.Session, r, logger)
		}, logger)
	})

	g.Go(func() error {
		reloadOnSIGHUP(gctx, holder, cc.Session, logger)
		return nil
	})

	g.Go(func() error {
		return printNotifications(gctx, cc.Session, cmd.OutOrStdout(), cc.Flags.JSON, watchRefresh)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// applyReload pushes changed live settings into the running session and
// warns about changes that need a restart.
func applyReload(mgr *session.Manager, r config.Reload, logger *slog.Logger) {
	cfg := r.Config

	if slices.Contains(r.Live, "poll_interval") {
		mgr.SetPollInterval(cfg.PollEvery())
	}

	if slices.Contains(r.Live, "revalidate_interval") {
		mgr.SetRevalidateInterval(cfg.RevalidateEvery())
	}

	logger.Info("config reloaded",
		slog.Any("applied", r.Live),
		slog.Duration("poll_interval", cfg.PollEvery()),
		slog.Duration("revalidate_interval", cfg.RevalidateEvery()),
	)

	if len(r.Restart) > 0 {
		logger.Warn("config changes take effect after restarting watch", slog.Any("keys", r.Restart))
	}
}

// reloadOnSIGHUP reloads the holder's config on every SIGHUP until ctx is
// done.
func reloadOnSIGHUP(ctx context.Context, holder *config.Holder, mgr *session.Manager, logger *slog.Logger) {
	hup := hangups(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		r, err := holder.Reload()
		if err != nil {
			logger.Warn("config reload failed, keeping current settings", slog.String("error", err.Error()))
			continue
		}

		if !r.Changed() {
			logger.Info("reload requested, config unchanged")
			continue
		}

		applyReload(mgr, r, logger)
	}
}

// notificationSource is what printNotifications reads from.
type notificationSource interface {
	Snapshot() session.Snapshot
}

// printNotifications writes every notification not seen before, oldest
// first, until ctx is done or the session ends. Notifications present at
// start are summarized, not printed.
func printNotifications(ctx context.Context, src notificationSource, w io.Writer, asJSON bool, every time.Duration) error {
	seen := make(map[int]bool)

	snap := src.Snapshot()
	for _, n := range snap.Notifications {
		seen[n.ID] = true
	}

	if !asJSON {
		fmt.Fprintf(w, "%d unread notifications.\n", snap.Unread)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	enc := json.NewEncoder(w)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		snap := src.Snapshot()
		if snap.State != session.StateAuthenticated {
			return errSessionEnded
		}

		// List is newest first; print in arrival order.
		var fresh []api.Notification

		for i := len(snap.Notifications) - 1; i >= 0; i-- {
			n := snap.Notifications[i]
			if !seen[n.ID] {
				seen[n.ID] = true
				fresh = append(fresh, n)
			}
		}

		for _, n := range fresh {
			if asJSON {
				if err := enc.Encode(n); err != nil {
					return err
				}

				continue
			}

			fmt.Fprintf(w, "[%s] %s (post %d)\n", formatTime(n.CreatedAt), n.Message, n.PostID)
		}
	}
}
