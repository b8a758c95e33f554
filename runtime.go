package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/bookswap/bookswap-cli/internal/api"
	"github.com/bookswap/bookswap-cli/internal/config"
	"github.com/bookswap/bookswap-cli/internal/session"
	"github.com/bookswap/bookswap-cli/internal/sessionfile"
	"github.com/bookswap/bookswap-cli/internal/tokenstore"
)

var errNotLoggedIn = errors.New("not logged in, run 'bookswap login' first")

// Flags is the per-invocation view of the global output flags.
type Flags struct {
	JSON  bool
	Quiet bool
}

// CLIContext is the wired runtime for one command invocation: the cookie
// jar restored from the session file, the token store, the API client and
// the session manager.
type CLIContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Flags   Flags
	Client  *api.Client
	Tokens  *tokenstore.Store
	Session *session.Manager

	server *url.URL
	jar    *cookiejar.Jar
	// forget drops the session file on Close instead of saving it.
	forget bool
}

// newCLIContext wires the runtime from cfg without touching the network.
func newCLIContext(cfg *config.Config, logger *slog.Logger) (*CLIContext, error) {
	server, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server_url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	httpClient := api.NewHTTPClient(jar, cfg.ConnectTimeoutDuration(), cfg.RequestTimeoutDuration())

	issuer, err := api.NewTokenIssuer(cfg.ServerURL, httpClient, cfg.CSRFCookie, logger)
	if err != nil {
		return nil, err
	}

	store := tokenstore.New(issuer, logger)

	if cfg.SessionFile != "" {
		sf, err := sessionfile.Load(cfg.SessionFile)
		if err != nil {
			// A corrupt file is equivalent to no session.
			logger.Warn("ignoring unreadable session file", slog.String("error", err.Error()))
		} else if sf != nil && !sf.Matches(server) {
			logger.Info("session file belongs to another server, starting fresh",
				slog.String("saved_for", sf.Server))
		} else if sf.Restore(jar, server) {
			logger.Debug("session cookies restored", slog.String("path", cfg.SessionFile))

			if sf.CSRFToken != "" {
				store.Restore(sf.CSRFToken)
			}
		}
	}

	client := api.NewClient(cfg.ServerURL, httpClient, store, logger,
		api.WithTokenHeader(cfg.CSRFHeader),
		api.WithUserAgent(cfg.UserAgent+" ("+version+")"),
	)

	mgr := session.New(client, store, session.Options{
		PollInterval:       cfg.PollEvery(),
		RevalidateInterval: cfg.RevalidateEvery(),
		DropdownSize:       cfg.DropdownSize,
		Logger:             logger,
	})

	return &CLIContext{
		Cfg:     cfg,
		Logger:  logger,
		Flags:   Flags{JSON: flagJSON, Quiet: flagQuiet},
		Client:  client,
		Tokens:  store,
		Session: mgr,
		server:  server,
		jar:     jar,
	}, nil
}

// startSession builds the runtime from the resolved config and discovers
// any existing session.
func startSession(ctx context.Context) (*CLIContext, error) {
	if resolvedCfg == nil {
		return nil, errors.New("no configuration loaded")
	}

	cc, err := newCLIContext(resolvedCfg, buildLogger())
	if err != nil {
		return nil, err
	}

	if err := cc.Session.Initialize(ctx); err != nil {
		cc.Session.Dispose()
		return nil, fmt.Errorf("contacting %s: %w", resolvedCfg.ServerURL, err)
	}

	return cc, nil
}

// requireUser returns the signed-in user or errNotLoggedIn.
func (cc *CLIContext) requireUser() (api.User, error) {
	user, ok := cc.Session.User()
	if !ok {
		return api.User{}, errNotLoggedIn
	}

	return user, nil
}

// Close stops background work and persists cookies and the current token
// so the next invocation resumes the same server session.
func (cc *CLIContext) Close() {
	cc.Session.Dispose()

	path := cc.Cfg.SessionFile
	if path == "" {
		return
	}

	if cc.forget {
		if err := sessionfile.Remove(path); err != nil {
			cc.Logger.Warn("removing session file", slog.String("error", err.Error()))
		}

		return
	}

	tok, _ := cc.Tokens.Token()

	meta := map[string]string{"saved_at": time.Now().UTC().Format(time.RFC3339)}
	if user, ok := cc.Session.User(); ok {
		meta["user_id"] = strconv.Itoa(user.ID)
		meta["email"] = user.Email
	}

	if err := sessionfile.Save(path, sessionfile.Capture(cc.jar, cc.server, tok, meta)); err != nil {
		cc.Logger.Warn("saving session file", slog.String("error", err.Error()))
	}
}

// read runs an idempotent read, retrying transient failures up to
// retry_attempts times.
func (cc *CLIContext) read(ctx context.Context, what string, fn func(context.Context) error) error {
	attempts := cc.Cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	// The last attempt's error is reported as-is so callers can match it
	// with errors.Is.
	var last error

	err := retry.Do(
		func() error {
			last = fn(ctx)
			return last
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(250*time.Millisecond),
		retry.Context(ctx),
		retry.RetryIf(api.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			cc.Logger.Info("retrying read",
				slog.String("what", what),
				slog.Uint64("attempt", uint64(n)+1),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		if last != nil {
			err = last
		}

		return fmt.Errorf("fetching %s: %w", what, err)
	}

	return nil
}
