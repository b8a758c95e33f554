package collection

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// earthRadiusMiles is the mean Earth radius used for distance filtering.
const earthRadiusMiles = 3958.8

// PostsAPI is the subset of the API client the posts cache uses.
type PostsAPI interface {
	Posts(ctx context.Context) ([]api.Post, error)
	CreatePost(ctx context.Context, draft api.PostDraft) (*api.Post, error)
	UpdatePost(ctx context.Context, postID int, draft api.PostDraft) (*api.Post, error)
	DeletePost(ctx context.Context, postID int) error
	CreateTextbook(ctx context.Context, draft api.TextbookDraft) (*api.Textbook, error)
}

// Posts is an insertion-ordered cache of marketplace posts keyed by ID.
type Posts struct {
	client PostsAPI
	logger *slog.Logger

	mu    sync.Mutex
	order []int
	byID  map[int]api.Post

	// afterChange runs after a confirmed update or delete.
	afterChange func(ctx context.Context) error
}

// NewPosts creates an empty cache.
func NewPosts(client PostsAPI, logger *slog.Logger) *Posts {
	if logger == nil {
		logger = slog.Default()
	}

	return &Posts{client: client, logger: logger, byID: make(map[int]api.Post)}
}

// OnChange registers fn to run after every confirmed update or delete. The
// session uses it to re-fetch notifications, since edits to watched posts
// create them server-side.
func (p *Posts) OnChange(fn func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.afterChange = fn
}

// Refresh replaces the cache wholesale in server order.
func (p *Posts) Refresh(ctx context.Context) error {
	posts, err := p.client.Posts(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.order = make([]int, 0, len(posts))
	p.byID = make(map[int]api.Post, len(posts))

	for _, post := range posts {
		if _, dup := p.byID[post.ID]; !dup {
			p.order = append(p.order, post.ID)
		}

		p.byID[post.ID] = post
	}

	p.logger.Debug("posts refreshed", slog.Int("count", len(p.order)))

	return nil
}

// Create publishes a post for an existing textbook and prepends the server's
// copy to the cache.
func (p *Posts) Create(ctx context.Context, draft api.PostDraft) (*api.Post, error) {
	post, err := p.client.CreatePost(ctx, draft)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[post.ID]; !exists {
		p.order = slices.Insert(p.order, 0, post.ID)
	}

	p.byID[post.ID] = *post

	return post, nil
}

// Publish creates the textbook entry, then the post that sells it.
func (p *Posts) Publish(ctx context.Context, tb api.TextbookDraft, draft api.PostDraft) (*api.Post, error) {
	textbook, err := p.client.CreateTextbook(ctx, tb)
	if err != nil {
		return nil, fmt.Errorf("creating textbook: %w", err)
	}

	draft.TextbookID = textbook.ID

	post, err := p.Create(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return post, nil
}

// Update replaces a post's editable fields and swaps the server's copy in
// place.
func (p *Posts) Update(ctx context.Context, postID int, draft api.PostDraft) (*api.Post, error) {
	post, err := p.client.UpdatePost(ctx, postID, draft)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, exists := p.byID[postID]; !exists {
		p.order = append(p.order, postID)
	}

	p.byID[postID] = *post
	hook := p.afterChange
	p.mu.Unlock()

	p.runHook(ctx, hook, "update", postID)

	return post, nil
}

// Delete removes a post and drops it from the cache.
func (p *Posts) Delete(ctx context.Context, postID int) error {
	if err := p.client.DeletePost(ctx, postID); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.byID, postID)
	p.order = slices.DeleteFunc(p.order, func(id int) bool { return id == postID })
	hook := p.afterChange
	p.mu.Unlock()

	p.runHook(ctx, hook, "delete", postID)

	return nil
}

func (p *Posts) runHook(ctx context.Context, hook func(context.Context) error, op string, postID int) {
	if hook == nil {
		return
	}

	if err := hook(ctx); err != nil {
		p.logger.Warn("post change follow-up failed",
			slog.String("op", op),
			slog.Int("post_id", postID),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns the cached post with the given ID.
func (p *Posts) Get(postID int) (api.Post, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	post, ok := p.byID[postID]

	return post, ok
}

// List returns the cached posts in insertion order.
func (p *Posts) List() []api.Post {
	return p.filter(func(api.Post) bool { return true })
}

// ByOwner returns the posts created by userID.
func (p *Posts) ByOwner(userID int) []api.Post {
	return p.filter(func(post api.Post) bool { return post.User.ID == userID })
}

// Near returns posts located within radiusMiles of (lat, lng). Posts without
// coordinates are excluded.
func (p *Posts) Near(lat, lng, radiusMiles float64) []api.Post {
	return p.filter(func(post api.Post) bool {
		if post.Latitude == nil || post.Longitude == nil {
			return false
		}

		return distanceMiles(lat, lng, *post.Latitude, *post.Longitude) <= radiusMiles
	})
}

func (p *Posts) filter(keep func(api.Post) bool) []api.Post {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]api.Post, 0, len(p.order))

	for _, id := range p.order {
		if post := p.byID[id]; keep(post) {
			out = append(out, post)
		}
	}

	return out
}

// distanceMiles is the great-circle distance between two points (haversine).
func distanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
