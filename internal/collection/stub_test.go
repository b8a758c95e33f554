package collection

import (
	"context"
	"sync"

	"github.com/bookswap/bookswap-cli/internal/api"
)

var errBoom = &api.APIError{StatusCode: 500, Message: "boom", Err: api.ErrRequestFailed}

// stubAPI is a scripted in-memory API. Fields ending in Err force the next
// matching call to fail; hooks run before the call returns so tests can
// block or reorder responses.
type stubAPI struct {
	mu sync.Mutex

	watch    []api.WatchlistEntry
	watchErr error
	addErr   error
	rmErr    error

	notifs      []api.Notification
	notifsErr   error
	notifsHook  func()
	markErr     error
	markAllHook func()

	posts       []api.Post
	postsErr    error
	nextID      int
	updateErr   error
	deleteErr   error
	textbookErr error

	comments   map[int][]api.Comment
	commentErr error

	books []api.Textbook

	calls []string
}

func newStub() *stubAPI {
	return &stubAPI{nextID: 100, comments: make(map[int][]api.Comment)}
}

func (s *stubAPI) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, name)
}

func (s *stubAPI) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

func (s *stubAPI) Watchlist(_ context.Context, _ int) ([]api.WatchlistEntry, error) {
	s.record("Watchlist")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchErr != nil {
		return nil, s.watchErr
	}

	return append([]api.WatchlistEntry(nil), s.watch...), nil
}

func (s *stubAPI) AddWatch(_ context.Context, _, postID, textbookID int) (*api.WatchlistEntry, error) {
	s.record("AddWatch")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.addErr != nil {
		return nil, s.addErr
	}

	e := api.WatchlistEntry{PostID: postID, TextbookID: textbookID}
	s.watch = append(s.watch, e)

	return &e, nil
}

func (s *stubAPI) RemoveWatch(_ context.Context, _, postID int) error {
	s.record("RemoveWatch")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rmErr != nil {
		return s.rmErr
	}

	out := s.watch[:0]

	for _, e := range s.watch {
		if e.PostID != postID {
			out = append(out, e)
		}
	}

	s.watch = out

	return nil
}

func (s *stubAPI) Notifications(_ context.Context, _ int) ([]api.Notification, error) {
	s.record("Notifications")

	s.mu.Lock()
	snapshot := append([]api.Notification(nil), s.notifs...)
	err := s.notifsErr
	hook := s.notifsHook
	s.mu.Unlock()

	// The response content is fixed before the hook, as a server would have
	// serialized it.
	if hook != nil {
		hook()
	}

	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (s *stubAPI) MarkRead(_ context.Context, id int) error {
	s.record("MarkRead")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markErr != nil {
		return s.markErr
	}

	for i := range s.notifs {
		if s.notifs[i].ID == id {
			s.notifs[i].Read = true
		}
	}

	return nil
}

func (s *stubAPI) MarkAllRead(_ context.Context, _ int) error {
	s.record("MarkAllRead")

	s.mu.Lock()
	err := s.markErr
	hook := s.markAllHook

	if err == nil {
		for i := range s.notifs {
			s.notifs[i].Read = true
		}
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}

	return err
}

func (s *stubAPI) Posts(context.Context) ([]api.Post, error) {
	s.record("Posts")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.postsErr != nil {
		return nil, s.postsErr
	}

	return append([]api.Post(nil), s.posts...), nil
}

func (s *stubAPI) CreatePost(_ context.Context, draft api.PostDraft) (*api.Post, error) {
	s.record("CreatePost")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p := api.Post{ID: s.nextID, Textbook: api.Textbook{ID: draft.TextbookID}, Price: draft.Price, Condition: draft.Condition}

	return &p, nil
}

func (s *stubAPI) UpdatePost(_ context.Context, postID int, draft api.PostDraft) (*api.Post, error) {
	s.record("UpdatePost")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return nil, s.updateErr
	}

	p := api.Post{ID: postID, Textbook: api.Textbook{ID: draft.TextbookID}, Price: draft.Price, Condition: draft.Condition}

	return &p, nil
}

func (s *stubAPI) DeletePost(context.Context, int) error {
	s.record("DeletePost")

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteErr
}

func (s *stubAPI) CreateTextbook(_ context.Context, draft api.TextbookDraft) (*api.Textbook, error) {
	s.record("CreateTextbook")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.textbookErr != nil {
		return nil, s.textbookErr
	}

	s.nextID++

	return &api.Textbook{ID: s.nextID, Title: draft.Title, Author: draft.Author, ISBN: draft.ISBN}, nil
}

func (s *stubAPI) Comments(_ context.Context, postID int) ([]api.Comment, error) {
	s.record("Comments")

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]api.Comment(nil), s.comments[postID]...), nil
}

func (s *stubAPI) AddComment(_ context.Context, postID int, text string) error {
	s.record("AddComment")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commentErr != nil {
		return s.commentErr
	}

	s.nextID++
	s.comments[postID] = append(s.comments[postID], api.Comment{ID: s.nextID, PostID: postID, Text: text})

	return nil
}

func (s *stubAPI) DeleteComment(_ context.Context, postID, commentID int) error {
	s.record("DeleteComment")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commentErr != nil {
		return s.commentErr
	}

	cs := s.comments[postID]
	for i := range cs {
		if cs[i].ID == commentID {
			s.comments[postID] = append(cs[:i], cs[i+1:]...)
			return nil
		}
	}

	return &api.APIError{StatusCode: 404, Message: "Comment not found", Err: api.ErrValidationRejected}
}

func (s *stubAPI) Textbooks(context.Context) ([]api.Textbook, error) {
	s.record("Textbooks")

	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]api.Textbook(nil), s.books...), nil
}
