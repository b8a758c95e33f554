package fakeapi

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+api.TokenPath, s.issueToken)

	s.handle(mux, "GET /check_session", true, s.checkSession)
	s.handle(mux, "POST /login", false, s.login)
	s.handle(mux, "POST /signup", false, s.signup)
	s.handle(mux, "POST /logout", false, s.logout)
	s.handle(mux, "DELETE /users/{id}", true, s.deleteUser)

	s.handle(mux, "GET /users/{id}/watchlist", true, s.listWatchlist)
	s.handle(mux, "POST /users/{id}/watchlist", true, s.addWatch)
	s.handle(mux, "DELETE /users/{id}/watchlist/{post}", true, s.removeWatch)

	s.handle(mux, "GET /users/{id}/notifications", true, s.listNotifications)
	s.handle(mux, "PATCH /notifications/{id}/read", true, s.markRead)
	s.handle(mux, "POST /users/{id}/notifications/read-all", true, s.markAllRead)

	s.handle(mux, "GET /posts", false, s.listPosts)
	s.handle(mux, "POST /posts", true, s.createPost)
	s.handle(mux, "PUT /posts/{id}", true, s.updatePost)
	s.handle(mux, "DELETE /posts/{id}", true, s.deletePost)

	s.handle(mux, "GET /posts/{id}/comments", false, s.listComments)
	s.handle(mux, "POST /posts/{id}/comments", true, s.addComment)
	s.handle(mux, "DELETE /posts/{id}/comments/{cid}", true, s.deleteComment)

	s.handle(mux, "GET /textbooks", false, s.listTextbooks)
	s.handle(mux, "POST /textbooks", true, s.createTextbook)

	return mux
}

func (s *Server) issueToken(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	tok := s.newTokenLocked()
	s.tokensIssued++
	s.mu.Unlock()

	if s.mirrorCookie {
		http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: tok, Path: "/", SameSite: http.SameSiteStrictMode})
	}

	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": tok})
}

func (s *Server) checkSession(w http.ResponseWriter, _ *http.Request, userID int) {
	s.mu.Lock()
	acct := s.users[userID]
	s.mu.Unlock()

	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ int) {
	var creds api.Credentials
	if err := decodeBody(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	var found *account

	for _, acct := range s.users {
		if strings.EqualFold(acct.user.Email, creds.Email) && acct.password == creds.Password {
			found = acct
			break
		}
	}

	if found == nil {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid email or password")

		return
	}

	sid := uuid.NewString()
	s.sessions[sid] = found.user.ID
	user := found.user
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sid, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request, _ int) {
	var reg api.Registration
	if err := decodeBody(r, &reg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if reg.Email == "" || reg.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	s.mu.Lock()
	for _, acct := range s.users {
		if strings.EqualFold(acct.user.Email, reg.Email) {
			s.mu.Unlock()
			writeError(w, http.StatusUnprocessableEntity, "Email already registered")

			return
		}
	}

	user := s.addUserLocked(reg.Email, reg.Name, reg.Password)
	sid := uuid.NewString()
	s.sessions[sid] = user.ID
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sid, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ int) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, userID int) {
	if !s.owns(w, r, userID) {
		return
	}

	s.mu.Lock()
	delete(s.users, userID)
	delete(s.watchlist, userID)
	delete(s.notifications, userID)

	for sid, uid := range s.sessions {
		if uid == userID {
			delete(s.sessions, sid)
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listWatchlist(w http.ResponseWriter, r *http.Request, userID int) {
	if !s.owns(w, r, userID) {
		return
	}

	s.mu.Lock()
	entries := append([]api.WatchlistEntry{}, s.watchlist[userID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) addWatch(w http.ResponseWriter, r *http.Request, userID int) {
	if !s.owns(w, r, userID) {
		return
	}

	var body struct {
		PostID     int `json:"post_id"`
		TextbookID int `json:"textbook_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.postIndexLocked(body.PostID) < 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	for _, e := range s.watchlist[userID] {
		if e.PostID == body.PostID {
			writeError(w, http.StatusConflict, "Post already on watchlist")
			return
		}
	}

	entry := api.WatchlistEntry{PostID: body.PostID, TextbookID: body.TextbookID, AddedAt: s.now().UTC()}
	s.watchlist[userID] = append(s.watchlist[userID], entry)

	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) removeWatch(w http.ResponseWriter, r *http.Request, userID int) {
	if !s.owns(w, r, userID) {
		return
	}

	postID, ok := pathInt(w, r, "post")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.watchlist[userID])
	s.watchlist[userID] = slices.DeleteFunc(s.watchlist[userID], func(e api.WatchlistEntry) bool {
		return e.PostID == postID
	})

	if len(s.watchlist[userID]) == before {
		writeError(w, http.StatusNotFound, "Watchlist entry not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request, userID int) {
	if !s.owns(w, r, userID) {
		return
	}

	s.mu.Lock()
	ns := append([]api.Notification{}, s.notifications[userID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request, userID int) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.notifications[userID]
	for i := range ns {
		if ns[i].ID == id {
			ns[i].Read = true
			w.WriteHeader(http.StatusNoContent)

			return
		}
	}

	writeError(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request, userID int) {
	if !s.owns(w, r, userID) {
		return
	}

	s.mu.Lock()
	for i := range s.notifications[userID] {
		s.notifications[userID][i].Read = true
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPosts(w http.ResponseWriter, _ *http.Request, _ int) {
	s.mu.Lock()
	posts := append([]api.Post{}, s.posts...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request, userID int) {
	var draft api.PostDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if draft.Price < 0 {
		writeError(w, http.StatusUnprocessableEntity, "Price must not be negative")
		return
	}

	s.mu.Lock()
	post, ok := s.newPostLocked(userID, draft)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Unknown textbook")
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) newPostLocked(ownerID int, draft api.PostDraft) (api.Post, bool) {
	tbIdx := slices.IndexFunc(s.textbooks, func(tb api.Textbook) bool { return tb.ID == draft.TextbookID })
	if tbIdx < 0 {
		return api.Post{}, false
	}

	var owner api.User
	if acct := s.users[ownerID]; acct != nil {
		owner = acct.user
	}

	post := api.Post{
		ID:        s.id(),
		Textbook:  s.textbooks[tbIdx],
		User:      owner,
		Price:     draft.Price,
		Condition: draft.Condition,
		ImageID:   draft.ImageID,
		Latitude:  draft.Latitude,
		Longitude: draft.Longitude,
		CreatedAt: s.now().UTC(),
	}

	// Newest first, as the marketplace feed is shown.
	s.posts = slices.Insert(s.posts, 0, post)

	return post, true
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request, userID int) {
	postID, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	var draft api.PostDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.postIndexLocked(postID)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	post := &s.posts[idx]
	if post.User.ID != userID {
		writeError(w, http.StatusForbidden, "Not your post")
		return
	}

	oldPrice := post.Price
	post.Price = draft.Price
	post.Condition = draft.Condition
	post.ImageID = draft.ImageID
	post.Latitude = draft.Latitude
	post.Longitude = draft.Longitude

	if draft.Price < oldPrice {
		msg := fmt.Sprintf("Price dropped on %q: $%d to $%d", post.Textbook.Title, oldPrice, draft.Price)

		for watcher, entries := range s.watchlist {
			if watcher != userID && slices.ContainsFunc(entries, func(e api.WatchlistEntry) bool { return e.PostID == postID }) {
				s.notifyLocked(watcher, postID, msg)
			}
		}
	}

	writeJSON(w, http.StatusOK, *post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request, userID int) {
	postID, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.postIndexLocked(postID)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	if s.posts[idx].User.ID != userID {
		writeError(w, http.StatusForbidden, "Not your post")
		return
	}

	// Watchlist entries of other users are left dangling, as the real
	// server does.
	s.posts = slices.Delete(s.posts, idx, idx+1)
	delete(s.comments, postID)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request, _ int) {
	postID, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	s.mu.Lock()
	cs := append([]api.Comment{}, s.comments[postID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request, userID int) {
	postID, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Comment text is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.postIndexLocked(postID) < 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	c := api.Comment{
		ID:        s.id(),
		PostID:    postID,
		Text:      body.Text,
		User:      s.users[userID].user,
		CreatedAt: s.now().UTC(),
	}
	s.comments[postID] = append(s.comments[postID], c)

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request, userID int) {
	postID, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	commentID, ok := pathInt(w, r, "cid")
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.comments[postID]

	idx := slices.IndexFunc(cs, func(c api.Comment) bool { return c.ID == commentID })
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}

	if cs[idx].User.ID != userID {
		writeError(w, http.StatusForbidden, "Not your comment")
		return
	}

	s.comments[postID] = slices.Delete(cs, idx, idx+1)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTextbooks(w http.ResponseWriter, _ *http.Request, _ int) {
	s.mu.Lock()
	books := append([]api.Textbook{}, s.textbooks...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, books)
}

func (s *Server) createTextbook(w http.ResponseWriter, r *http.Request, _ int) {
	var draft api.TextbookDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if draft.Title == "" {
		writeError(w, http.StatusUnprocessableEntity, "Title is required")
		return
	}

	tb := api.Textbook{
		Title:   draft.Title,
		Author:  draft.Author,
		ISBN:    draft.ISBN,
		Subject: draft.Subject,
	}

	if draft.ImageID != "" {
		tb.ImageURL = "https://images.example.com/" + draft.ImageID
	}

	s.mu.Lock()
	tb.ID = s.id()
	s.textbooks = append(s.textbooks, tb)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, tb)
}

func (s *Server) postIndexLocked(postID int) int {
	return slices.IndexFunc(s.posts, func(p api.Post) bool { return p.ID == postID })
}

// owns checks that the {id} path segment names the session's user.
func (s *Server) owns(w http.ResponseWriter, r *http.Request, userID int) bool {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return false
	}

	if id != userID {
		writeError(w, http.StatusForbidden, "Forbidden")
		return false
	}

	return true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return 0, false
	}

	return v, true
}
