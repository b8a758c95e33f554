package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// ErrEmptyComment is returned when a submitted comment is blank.
var ErrEmptyComment = errors.New("collection: comment text is empty")

// CommentsAPI is the subset of the API client Comments uses.
type CommentsAPI interface {
	Comments(ctx context.Context, postID int) ([]api.Comment, error)
	AddComment(ctx context.Context, postID int, text string) error
	DeleteComment(ctx context.Context, postID, commentID int) error
}

// Comments caches comment threads per post. Submitting or deleting is
// followed by a re-fetch of that thread, strictly in sequence.
type Comments struct {
	client CommentsAPI
	logger *slog.Logger

	mu     sync.Mutex
	byPost map[int][]api.Comment
}

// NewComments creates an empty comment cache.
func NewComments(client CommentsAPI, logger *slog.Logger) *Comments {
	if logger == nil {
		logger = slog.Default()
	}

	return &Comments{client: client, logger: logger, byPost: make(map[int][]api.Comment)}
}

// Fetch replaces the cached thread of postID.
func (c *Comments) Fetch(ctx context.Context, postID int) error {
	cs, err := c.client.Comments(ctx, postID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byPost[postID] = slices.Clone(cs)

	return nil
}

// Submit posts text on postID, then re-fetches the thread.
func (c *Comments) Submit(ctx context.Context, postID int, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyComment
	}

	if err := c.client.AddComment(ctx, postID, text); err != nil {
		return err
	}

	if err := c.Fetch(ctx, postID); err != nil {
		return fmt.Errorf("refreshing comments: %w", err)
	}

	return nil
}

// Delete removes commentID from postID, then re-fetches the thread.
func (c *Comments) Delete(ctx context.Context, postID, commentID int) error {
	if err := c.client.DeleteComment(ctx, postID, commentID); err != nil {
		return err
	}

	if err := c.Fetch(ctx, postID); err != nil {
		return fmt.Errorf("refreshing comments: %w", err)
	}

	return nil
}

// For returns the cached thread of postID.
func (c *Comments) For(postID int) []api.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.byPost[postID])
}
