// Package fakeapi is an in-memory marketplace server for tests. It enforces
// the same contract as the real API: cookie sessions, anti-forgery tokens on
// state-changing methods (rejected with 403), owner checks, and server-side
// notifications when a watched post's price drops. Tests steer it with
// forced failures, token revocation, session expiry and call counters.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// Cookie and header names the server uses.
const (
	SessionCookie = "session"
	TokenCookie   = api.DefaultTokenCookie
	TokenHeader   = api.DefaultTokenHeader
)

type account struct {
	user     api.User
	password string
}

// Server is a running fake API. Embeds the httptest server, so URL and
// Client are available directly.
type Server struct {
	*httptest.Server

	mirrorCookie bool
	rotateTokens bool
	now          func() time.Time

	mu            sync.Mutex
	nextID        int
	users         map[int]*account
	sessions      map[string]int // session cookie -> user ID
	tokens        map[string]bool
	textbooks     []api.Textbook
	posts         []api.Post
	comments      map[int][]api.Comment
	watchlist     map[int][]api.WatchlistEntry
	notifications map[int][]api.Notification
	failures      map[string][]int // "METHOD /pattern" -> queued status codes
	delays        map[string]chan struct{}
	calls         map[string]int
	tokensIssued  int
}

// Option configures a Server.
type Option func(*Server)

// WithCookieMirror makes the server mirror issued tokens into the
// same-site CSRF cookie, as browsers see it.
func WithCookieMirror() Option {
	return func(s *Server) { s.mirrorCookie = true }
}

// WithTokenRotation makes every successful state-changing response carry a
// fresh token in the token header, invalidating the one just used.
func WithTokenRotation() Option {
	return func(s *Server) { s.rotateTokens = true }
}

// WithClock pins the server's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New starts a fake API server. Callers must Close it.
func New(opts ...Option) *Server {
	s := &Server{
		now:           time.Now,
		nextID:        1,
		users:         make(map[int]*account),
		sessions:      make(map[string]int),
		tokens:        make(map[string]bool),
		comments:      make(map[int][]api.Comment),
		watchlist:     make(map[int][]api.WatchlistEntry),
		notifications: make(map[int][]api.Notification),
		failures:      make(map[string][]int),
		delays:        make(map[string]chan struct{}),
		calls:         make(map[string]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())

	return s
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, name, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addUserLocked(email, name, password)
}

func (s *Server) addUserLocked(email, name, password string) api.User {
	u := api.User{ID: s.id(), Email: email, DisplayName: name}
	s.users[u.ID] = &account{user: u, password: password}

	return u
}

// AddTextbook adds a catalog entry directly. The ID is assigned.
func (s *Server) AddTextbook(tb api.Textbook) api.Textbook {
	s.mu.Lock()
	defer s.mu.Unlock()

	tb.ID = s.id()
	s.textbooks = append(s.textbooks, tb)

	return tb
}

// AddPost creates a post owned by ownerID for textbookID directly.
func (s *Server) AddPost(ownerID, textbookID, price int, condition string) api.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, _ := s.newPostLocked(ownerID, api.PostDraft{TextbookID: textbookID, Price: price, Condition: condition})

	return post
}

// Notify creates a notification for userID directly.
func (s *Server) Notify(userID, postID int, message string) api.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.notifyLocked(userID, postID, message)
}

// Watchlist returns the server-side watchlist of userID.
func (s *Server) Watchlist(userID int) []api.WatchlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]api.WatchlistEntry(nil), s.watchlist[userID]...)
}

// Notifications returns the server-side notifications of userID.
func (s *Server) Notifications(userID int) []api.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]api.Notification(nil), s.notifications[userID]...)
}

// FailNext makes the next n calls matching pattern (e.g. "GET /posts" or
// "POST /users/{id}/watchlist") answer status without doing any work.
func (s *Server) FailNext(pattern string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range n {
		s.failures[pattern] = append(s.failures[pattern], status)
	}
}

// Hold blocks calls matching pattern until the returned release func runs.
// Used to order concurrent responses deterministically.
func (s *Server) Hold(pattern string) (release func()) {
	ch := make(chan struct{})

	s.mu.Lock()
	s.delays[pattern] = ch
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.delays, pattern)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// RevokeTokens invalidates every issued anti-forgery token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.tokens)
}

// ExpireSessions drops every server-side session.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.sessions)
}

// Calls returns how many requests matched pattern, forced failures included.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[pattern]
}

// TokensIssued returns how many tokens the issuing endpoint handed out.
func (s *Server) TokensIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokensIssued
}

func (s *Server) id() int {
	id := s.nextID
	s.nextID++

	return id
}

func (s *Server) newTokenLocked() string {
	tok := uuid.NewString()
	s.tokens[tok] = true

	return tok
}

func (s *Server) notifyLocked(userID, postID int, message string) api.Notification {
	n := api.Notification{
		ID:        s.id(),
		Message:   message,
		PostID:    postID,
		CreatedAt: s.now().UTC(),
	}
	s.notifications[userID] = append(s.notifications[userID], n)

	return n
}

// handle wraps h with call counting, forced failures, holds, and the
// session and anti-forgery checks the pattern requires.
func (s *Server) handle(mux *http.ServeMux, pattern string, auth bool, h func(w http.ResponseWriter, r *http.Request, userID int)) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++

		var forced int
		if queue := s.failures[pattern]; len(queue) > 0 {
			forced, s.failures[pattern] = queue[0], queue[1:]
		}

		hold := s.delays[pattern]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		if forced != 0 {
			writeError(w, forced, http.StatusText(forced))
			return
		}

		mutating := r.Method != http.MethodGet && r.Method != http.MethodHead

		s.mu.Lock()
		if mutating && !s.tokens[r.Header.Get(TokenHeader)] {
			s.mu.Unlock()
			writeError(w, http.StatusForbidden, "CSRF token missing or incorrect")

			return
		}

		userID := 0
		if c, err := r.Cookie(SessionCookie); err == nil {
			userID = s.sessions[c.Value]
		}

		if mutating && s.rotateTokens {
			delete(s.tokens, r.Header.Get(TokenHeader))
			w.Header().Set(TokenHeader, s.newTokenLocked())
		}
		s.mu.Unlock()

		if auth && userID == 0 {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		h(w, r, userID)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	return nil
}
