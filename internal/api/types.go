package api

import "time"

// User is the authenticated principal returned by login, signup and the
// session check.
type User struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// Credentials are posted to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Registration is posted to the signup endpoint.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// WatchlistEntry links the session's user to a tracked post.
type WatchlistEntry struct {
	PostID     int       `json:"post_id"`
	TextbookID int       `json:"textbook_id"`
	AddedAt    time.Time `json:"added_at"`
}

// Notification is created server-side; clients only read it and flip Read.
type Notification struct {
	ID        int       `json:"id"`
	Message   string    `json:"message"`
	PostID    int       `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// Textbook is the catalog entry a post sells a copy of.
type Textbook struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Subject  string `json:"subject,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// TextbookDraft is the payload for creating a catalog entry. ImageID is the
// opaque identifier returned by the external image uploader.
type TextbookDraft struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	ISBN    string `json:"isbn"`
	Subject string `json:"subject,omitempty"`
	ImageID string `json:"image_id,omitempty"`
}

// Post is a marketplace listing.
type Post struct {
	ID        int       `json:"id"`
	Textbook  Textbook  `json:"textbook"`
	User      User      `json:"user"`
	Price     int       `json:"price"`
	Condition string    `json:"condition"`
	ImageID   string    `json:"image_id,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostDraft is the payload for creating or updating a post. On update, zero
// values are sent as-is; callers start from the current post.
type PostDraft struct {
	TextbookID int      `json:"textbook_id"`
	Price      int      `json:"price"`
	Condition  string   `json:"condition"`
	ImageID    string   `json:"image_id,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Comment is a message on a post's thread.
type Comment struct {
	ID        int       `json:"id"`
	PostID    int       `json:"post_id"`
	Text      string    `json:"text"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}
