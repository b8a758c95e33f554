package api

import (
	"context"
	"fmt"
	"net/http"
)

// Posts lists every marketplace post in server order.
func (c *Client) Posts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, draft PostDraft) (*Post, error) {
	var p Post
	if err := c.do(ctx, http.MethodPost, "/posts", draft, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// UpdatePost replaces the editable fields of a post.
func (c *Client) UpdatePost(ctx context.Context, postID int, draft PostDraft) (*Post, error) {
	var p Post
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/posts/%d", postID), draft, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, postID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", postID), nil, nil)
}

// Comments lists a post's comments.
func (c *Client) Comments(ctx context.Context, postID int) ([]Comment, error) {
	var cs []Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d/comments", postID), nil, &cs); err != nil {
		return nil, err
	}

	return cs, nil
}

// AddComment posts a comment on a post.
func (c *Client) AddComment(ctx context.Context, postID int, text string) error {
	body := struct {
		Text string `json:"text"`
	}{text}

	return c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/comments", postID), body, nil)
}

// DeleteComment removes one of the caller's comments.
func (c *Client) DeleteComment(ctx context.Context, postID, commentID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d/comments/%d", postID, commentID), nil, nil)
}

// Textbooks lists the textbook catalog.
func (c *Client) Textbooks(ctx context.Context) ([]Textbook, error) {
	var tbs []Textbook
	if err := c.do(ctx, http.MethodGet, "/textbooks", nil, &tbs); err != nil {
		return nil, err
	}

	return tbs, nil
}

// CreateTextbook adds a catalog entry.
func (c *Client) CreateTextbook(ctx context.Context, draft TextbookDraft) (*Textbook, error) {
	var tb Textbook
	if err := c.do(ctx, http.MethodPost, "/textbooks", draft, &tb); err != nil {
		return nil, err
	}

	return &tb, nil
}
