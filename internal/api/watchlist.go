package api

import (
	"context"
	"fmt"
	"net/http"
)

// Watchlist lists the user's watchlist entries.
func (c *Client) Watchlist(ctx context.Context, userID int) ([]WatchlistEntry, error) {
	var entries []WatchlistEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/watchlist", userID), nil, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// AddWatch adds a post to the user's watchlist and returns the canonical
// entry as stored by the server.
func (c *Client) AddWatch(ctx context.Context, userID, postID, textbookID int) (*WatchlistEntry, error) {
	body := struct {
		PostID     int `json:"post_id"`
		TextbookID int `json:"textbook_id"`
	}{postID, textbookID}

	var entry WatchlistEntry
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/watchlist", userID), body, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// RemoveWatch removes a post from the user's watchlist.
func (c *Client) RemoveWatch(ctx context.Context, userID, postID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d/watchlist/%d", userID, postID), nil, nil)
}

// Notifications lists the user's notifications.
func (c *Client) Notifications(ctx context.Context, userID int) ([]Notification, error) {
	var ns []Notification
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/notifications", userID), nil, &ns); err != nil {
		return nil, err
	}

	return ns, nil
}

// MarkRead flags one notification as read.
func (c *Client) MarkRead(ctx context.Context, notificationID int) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/notifications/%d/read", notificationID), nil, nil)
}

// MarkAllRead flags every notification of the user as read.
func (c *Client) MarkAllRead(ctx context.Context, userID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/notifications/read-all", userID), nil, nil)
}
