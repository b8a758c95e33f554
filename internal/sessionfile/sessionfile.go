// Package sessionfile persists what a browser keeps between page loads: the
// server's cookies and the last known anti-forgery token. Separate CLI
// invocations share one server session through this file.
package sessionfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the parent directory.
const DirPerms = 0o700

// Cookie is one persisted cookie. A jar only reveals name and value, so
// nothing else is stored; cookies are re-scoped to the server root on load.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// File is the on-disk format. Server pins the cookies to the origin they
// came from so pointing the CLI elsewhere does not leak them.
type File struct {
	Server    string            `json:"server"`
	Cookies   []Cookie          `json:"cookies"`
	CSRFToken string            `json:"csrf_token,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Load reads a session file. Returns (nil, nil) if the file does not exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("sessionfile: reading %s: %w", path, err)
	}

	var sf File
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("sessionfile: decoding %s: %w", path, err)
	}

	if sf.Server == "" {
		return nil, fmt.Errorf("sessionfile: %s missing server field", path)
	}

	return &sf, nil
}

// Save writes a session file atomically (write-to-temp + rename) with 0600
// permissions.
func Save(path string, sf *File) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("sessionfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("sessionfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sessionfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sessionfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("sessionfile: removing %s: %w", path, err)
	}

	return nil
}

// Capture builds a File from the cookies jar holds for server.
func Capture(jar http.CookieJar, server *url.URL, csrfToken string, meta map[string]string) *File {
	sf := &File{
		Server:    Origin(server),
		CSRFToken: csrfToken,
		Meta:      maps.Clone(meta),
	}

	for _, c := range jar.Cookies(server) {
		sf.Cookies = append(sf.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}

	return sf
}

// Restore seeds jar with the persisted cookies when they belong to server.
// It reports whether anything was restored.
func (sf *File) Restore(jar http.CookieJar, server *url.URL) bool {
	if sf == nil || sf.Server != Origin(server) || len(sf.Cookies) == 0 {
		return false
	}

	root := &url.URL{Scheme: server.Scheme, Host: server.Host, Path: "/"}
	cookies := make([]*http.Cookie, 0, len(sf.Cookies))

	for _, c := range sf.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}

	jar.SetCookies(root, cookies)

	return true
}

// Matches reports whether the file was captured for server.
func (sf *File) Matches(server *url.URL) bool {
	return sf != nil && sf.Server == Origin(server)
}

// Origin is the scheme://host key a File is pinned to.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
