package sessionfile

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}

func TestLoad_FileNotFound(t *testing.T) {
	sf, err := Load("/nonexistent/path/session.json")
	assert.Nil(t, sf)
	assert.NoError(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json}`), 0o600))

	sf, err := Load(path)
	assert.Nil(t, sf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestLoad_MissingServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cookies":[]}`), 0o600))

	sf, err := Load(path)
	assert.Nil(t, sf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing server")
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	original := &File{
		Server:    "http://localhost:5555",
		Cookies:   []Cookie{{Name: "session", Value: "abc"}},
		CSRFToken: "tok-1",
		Meta:      map[string]string{"email": "a@b.c"},
	}
	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSave_CreatesDirectoryWithPerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "session.json")

	require.NoError(t, Save(path, &File{Server: "http://x"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".session-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp file left behind")
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, Save(path, &File{Server: "http://x"}))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing again is fine.
	assert.NoError(t, Remove(path))
}

func TestCaptureRestore(t *testing.T) {
	server := mustURL(t, "http://localhost:5555/api")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	jar.SetCookies(mustURL(t, "http://localhost:5555/"), []*http.Cookie{
		{Name: "session", Value: "s1", Path: "/"},
		{Name: "csrf_token", Value: "c1", Path: "/"},
	})

	sf := Capture(jar, server, "c1", map[string]string{"user_id": "7"})
	assert.Equal(t, "http://localhost:5555", sf.Server)
	assert.ElementsMatch(t, []Cookie{{Name: "session", Value: "s1"}, {Name: "csrf_token", Value: "c1"}}, sf.Cookies)
	assert.Equal(t, "c1", sf.CSRFToken)

	fresh, err := cookiejar.New(nil)
	require.NoError(t, err)
	assert.True(t, sf.Restore(fresh, server))

	got := fresh.Cookies(mustURL(t, "http://localhost:5555/users/7"))
	assert.Len(t, got, 2)
}

func TestRestore_OtherServerIgnored(t *testing.T) {
	sf := &File{Server: "http://localhost:5555", Cookies: []Cookie{{Name: "session", Value: "s1"}}}

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	other := mustURL(t, "https://bookswap.example.com")
	assert.False(t, sf.Restore(jar, other))
	assert.False(t, sf.Matches(other))
	assert.Empty(t, jar.Cookies(other))
}

func TestRestore_NilFile(t *testing.T) {
	var sf *File

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	assert.False(t, sf.Restore(jar, mustURL(t, "http://x")))
}
