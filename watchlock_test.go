package main

import (
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-cli/internal/config"
	"github.com/bookswap/bookswap-cli/internal/sessionfile"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}

func aliceRecord(pid int) watchRecord {
	return watchRecord{
		PID:       pid,
		Server:    "http://127.0.0.1:5555",
		UserID:    7,
		Email:     "alice@example.com",
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestWatchLockPath_PerAccountAndServer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	local := mustURL(t, "http://127.0.0.1:5555/api")
	other := mustURL(t, "https://bookswap.example.com")

	alice := watchLockPath(dir, local, "alice@example.com")
	require.NotEmpty(t, alice)
	assert.Equal(t, dir, filepath.Dir(alice))

	assert.Equal(t, alice, watchLockPath(dir, mustURL(t, "http://127.0.0.1:5555"), " Alice@Example.com"),
		"path and email case do not change the key")
	assert.NotEqual(t, alice, watchLockPath(dir, local, "bob@example.com"))
	assert.NotEqual(t, alice, watchLockPath(dir, other, "alice@example.com"))

	assert.Empty(t, watchLockPath("", local, "alice@example.com"))
	assert.Empty(t, watchLockPath(dir, local, ""))
}

func TestAcquireWatchLock_RecordsWatcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "alice.lock")
	rec := aliceRecord(os.Getpid())

	release, err := acquireWatchLock(path, rec)
	require.NoError(t, err)

	defer release()

	got, err := readWatchRecord(path)
	require.NoError(t, err)
	assert.Equal(t, rec.PID, got.PID)
	assert.Equal(t, rec.Email, got.Email)
	assert.Equal(t, rec.Server, got.Server)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(watchLockFilePerms), info.Mode().Perm())
}

func TestAcquireWatchLock_SecondWatcherNamesTheFirst(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alice.lock")

	release, err := acquireWatchLock(path, aliceRecord(os.Getpid()))
	require.NoError(t, err)

	defer release()

	again, err := acquireWatchLock(path, aliceRecord(os.Getpid()))
	require.Error(t, err)
	assert.Nil(t, again)
	assert.Contains(t, err.Error(), "already watching alice@example.com on http://127.0.0.1:5555")
}

func TestAcquireWatchLock_OtherAccountsCoexist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	server := mustURL(t, "http://127.0.0.1:5555")

	releaseAlice, err := acquireWatchLock(watchLockPath(dir, server, "alice@example.com"), aliceRecord(os.Getpid()))
	require.NoError(t, err)

	defer releaseAlice()

	bob := aliceRecord(os.Getpid())
	bob.Email = "bob@example.com"

	releaseBob, err := acquireWatchLock(watchLockPath(dir, server, bob.Email), bob)
	require.NoError(t, err)

	releaseBob()
}

func TestAcquireWatchLock_ReleaseRemovesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alice.lock")

	release, err := acquireWatchLock(path, aliceRecord(os.Getpid()))
	require.NoError(t, err)

	release()

	assert.NoFileExists(t, path)
}

func TestAcquireWatchLock_EmptyPath(t *testing.T) {
	t.Parallel()

	release, err := acquireWatchLock("", aliceRecord(1))
	assert.Nil(t, release)
	assert.ErrorContains(t, err, "empty")
}

func TestReadWatchRecord_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.lock")
	require.NoError(t, os.WriteFile(garbage, []byte("12345\n"), 0o600))

	_, err := readWatchRecord(garbage)
	assert.ErrorContains(t, err, "invalid watch lock")

	noPID := filepath.Join(dir, "nopid.lock")
	require.NoError(t, os.WriteFile(noPID, []byte(`{"email":"alice@example.com"}`), 0o600))

	_, err = readWatchRecord(noPID)
	assert.ErrorContains(t, err, "no PID")
}

func TestSignalWatcher_NoLock(t *testing.T) {
	t.Parallel()

	_, err := signalWatcher(filepath.Join(t.TempDir(), "missing.lock"))
	assert.ErrorContains(t, err, "no watcher is running")
}

func TestSignalWatcher_StaleLockRemoved(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alice.lock")

	// PID 999999999 is almost certainly not a running process.
	release, err := acquireWatchLock(path, aliceRecord(999999999))
	require.NoError(t, err)

	defer release()

	_, err = signalWatcher(path)
	assert.ErrorContains(t, err, "not running")
	assert.NoFileExists(t, path)
}

func TestSignalWatcher_SendsSIGHUP(t *testing.T) {
	t.Parallel()

	// Trap SIGHUP so it doesn't kill the test process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	defer signal.Stop(sigCh)

	path := filepath.Join(t.TempDir(), "alice.lock")

	release, err := acquireWatchLock(path, aliceRecord(os.Getpid()))
	require.NoError(t, err)

	defer release()

	rec, err := signalWatcher(path)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", rec.Email)

	select {
	case sig := <-sigCh:
		assert.Equal(t, syscall.SIGHUP, sig)
	case <-time.After(5 * time.Second):
		t.Fatal("SIGHUP not delivered")
	}
}

func TestReloadTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	saved := filepath.Join(dir, "session.json")
	require.NoError(t, sessionfile.Save(saved, &sessionfile.File{
		Server: "http://127.0.0.1:5555",
		Meta:   map[string]string{"email": "alice@example.com", "user_id": strconv.Itoa(7)},
	}))

	cfg := config.DefaultConfig()
	cfg.ServerURL = "http://127.0.0.1:5555"
	cfg.SessionFile = saved

	server, email, err := reloadTarget(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5555", server.Host)
	assert.Equal(t, "alice@example.com", email)

	_, email, err = reloadTarget(cfg, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email, "an explicit account wins")

	elsewhere := *cfg
	elsewhere.ServerURL = "https://bookswap.example.com"

	_, _, err = reloadTarget(&elsewhere, "")
	assert.ErrorContains(t, err, "pass --email")

	missing := *cfg
	missing.SessionFile = filepath.Join(dir, "none.json")

	_, _, err = reloadTarget(&missing, "")
	assert.ErrorContains(t, err, "pass --email")

	_, _, err = reloadTarget(nil, "")
	assert.Error(t, err)
}
