package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-cli/internal/sessionfile"
)

const (
	watchLockDirPerms  = 0o700
	watchLockFilePerms = 0o600
)

// watchRecord is what a running watcher writes into its lock file. `watch
// reload` reads it back to find the process to signal.
type watchRecord struct {
	PID       int       `json:"pid"`
	Server    string    `json:"server"`
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	StartedAt time.Time `json:"started_at"`
}

func (r watchRecord) describe() string {
	return fmt.Sprintf("%s on %s (PID %d)", r.Email, r.Server, r.PID)
}

// watchLockPath names the lock in dir for one account on one server. Emails
// are case-insensitive on the server, so the key is too.
func watchLockPath(dir string, server *url.URL, email string) string {
	if dir == "" || server == nil || email == "" {
		return ""
	}

	key := sessionfile.Origin(server) + "#" + strings.ToLower(strings.TrimSpace(email))
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))

	return filepath.Join(dir, id.String()+".lock")
}

// acquireWatchLock takes an exclusive flock on path and records rec in it.
// The returned release removes the file and drops the lock.
func acquireWatchLock(path string, rec watchRecord) (release func(), err error) {
	if path == "" {
		return nil, errors.New("watch lock path is empty, cannot determine data directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), watchLockDirPerms); err != nil {
		return nil, fmt.Errorf("creating watch lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, watchLockFilePerms)
	if err != nil {
		return nil, fmt.Errorf("opening watch lock: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if held, readErr := readWatchRecord(path); readErr == nil {
			return nil, fmt.Errorf("already watching %s", held.describe())
		}

		return nil, fmt.Errorf("another watcher holds %s", path)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("encoding watch record: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncating watch lock: %w", err)
	}

	if _, err := f.WriteAt(append(data, '\n'), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing watch lock: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("syncing watch lock: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

func readWatchRecord(path string) (watchRecord, error) {
	var rec watchRecord

	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("reading watch lock: %w", err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("invalid watch lock %s: %w", path, err)
	}

	if rec.PID <= 0 {
		return rec, fmt.Errorf("invalid watch lock %s: no PID", path)
	}

	return rec, nil
}

// signalWatcher sends SIGHUP to the watcher recorded at path. A lock left
// behind by a dead process is removed.
func signalWatcher(path string) (watchRecord, error) {
	rec, err := readWatchRecord(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rec, errors.New("no watcher is running for this account and server")
		}

		return rec, err
	}

	proc, err := os.FindProcess(rec.PID)
	if err != nil {
		return rec, fmt.Errorf("finding process %d: %w", rec.PID, err)
	}

	// Signal 0 checks liveness.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		os.Remove(path)
		return rec, fmt.Errorf("watcher for %s is not running (stale lock removed)", rec.describe())
	}

	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return rec, fmt.Errorf("signalling watcher for %s: %w", rec.describe(), err)
	}

	return rec, nil
}
