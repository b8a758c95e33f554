package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events an editor's save produces.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the holder's config file whenever it changes on disk and
// calls onChange for each reload that loads, validates and changes
// something. Invalid files are logged and the previous config kept. The
// parent directory is watched so that editors replacing the file by rename
// are seen. Blocks until ctx is cancelled.
func Watch(ctx context.Context, h *Holder, onChange func(Reload), logger *slog.Logger) error {
	if h.Path() == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(h.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
		}

		// No config directory yet: nothing to reload until the next start.
		logger.Info("config directory missing, reload disabled", slog.String("path", target))
		<-ctx.Done()

		return nil
	}

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}

			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != target || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
				continue
			}

			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
			} else {
				debounce.Reset(reloadDebounce)
			}

			fire = debounce.C

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", werr.Error()))

		case <-fire:
			fire = nil
			reload(h, onChange, logger)
		}
	}
}

func reload(h *Holder, onChange func(Reload), logger *slog.Logger) {
	r, err := h.Reload()
	if err != nil {
		logger.Warn("config reload rejected, keeping previous config",
			slog.String("path", h.Path()),
			slog.String("error", err.Error()),
		)

		return
	}

	if !r.Changed() {
		logger.Debug("config file touched, nothing changed", slog.String("path", h.Path()))
		return
	}

	if onChange != nil {
		onChange(r)
	}
}
