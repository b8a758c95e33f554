package api

import (
	"context"
	"fmt"
	"net/http"
)

// CheckSession asks whether the cookie jar holds a valid session.
// Returns ErrAuthorizationRejected when the caller is anonymous.
func (c *Client) CheckSession(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/check_session", nil, &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// Login exchanges credentials for a session cookie.
func (c *Client) Login(ctx context.Context, creds Credentials) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/login", creds, &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// Signup registers a new account and starts its session.
func (c *Client) Signup(ctx context.Context, reg Registration) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/signup", reg, &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// DeleteUser removes the account with the given ID.
func (c *Client) DeleteUser(ctx context.Context, userID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", userID), nil, nil)
}
