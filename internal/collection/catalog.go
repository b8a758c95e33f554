package collection

import (
	"context"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// TextbooksAPI is the subset of the API client the Catalog uses.
type TextbooksAPI interface {
	Textbooks(ctx context.Context) ([]api.Textbook, error)
}

// Catalog caches the textbook catalog for local search.
type Catalog struct {
	client TextbooksAPI

	mu    sync.Mutex
	books []api.Textbook
}

// NewCatalog creates an empty catalog.
func NewCatalog(client TextbooksAPI) *Catalog {
	return &Catalog{client: client}
}

// Fetch replaces the cached catalog.
func (c *Catalog) Fetch(ctx context.Context) error {
	books, err := c.client.Textbooks(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.books = slices.Clone(books)

	return nil
}

// Search returns the textbooks whose title or author contains term, ignoring
// case and Unicode normalization form, or whose ISBN starts with term. An
// empty term matches everything.
func (c *Catalog) Search(term string) []api.Textbook {
	c.mu.Lock()
	books := slices.Clone(c.books)
	c.mu.Unlock()

	term = strings.TrimSpace(term)
	if term == "" {
		return books
	}

	needle := fold(term)

	return slices.DeleteFunc(books, func(tb api.Textbook) bool {
		return !strings.Contains(fold(tb.Title), needle) &&
			!strings.Contains(fold(tb.Author), needle) &&
			!strings.HasPrefix(tb.ISBN, term)
	})
}

// fold maps s to a canonical form for case-insensitive matching. A Caser
// keeps state, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
