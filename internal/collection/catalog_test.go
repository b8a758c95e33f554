package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func titles(tbs []api.Textbook) []string {
	out := make([]string, len(tbs))
	for i, tb := range tbs {
		out[i] = tb.Title
	}

	return out
}

func TestCatalog_Search(t *testing.T) {
	stub := newStub()
	stub.books = []api.Textbook{
		{ID: 1, Title: "Linear Algebra Done Right", Author: "Sheldon Axler", ISBN: "9783319110790"},
		{ID: 2, Title: "Introduction to Algorithms", Author: "Cormen", ISBN: "9780262033848"},
		// Decomposed "e" + combining acute accent.
		{ID: 3, Title: "Analyse re\u0301elle", Author: "Gourdon", ISBN: "9782729897563"},
		{ID: 4, Title: "Straße und Verkehr", Author: "Müller", ISBN: "9783000000000"},
	}

	c := NewCatalog(stub)
	require.NoError(t, c.Fetch(t.Context()))

	tests := []struct {
		name string
		term string
		want []string
	}{
		{"case insensitive title", "ALGEBRA", []string{"Linear Algebra Done Right"}},
		{"author", "cormen", []string{"Introduction to Algorithms"}},
		{"shared substring", "alg", []string{"Linear Algebra Done Right", "Introduction to Algorithms"}},
		{"isbn prefix", "9780262", []string{"Introduction to Algorithms"}},
		{"isbn shared prefix", "9783", []string{"Linear Algebra Done Right", "Straße und Verkehr"}},
		{"isbn interior digits", "0262033848", []string{}},
		{"normalization form", "r\u00e9elle", []string{"Analyse re\u0301elle"}},
		{"case folding", "STRASSE", []string{"Straße und Verkehr"}},
		{"no match", "topology", []string{}},
		{"empty term", "  ", []string{
			"Linear Algebra Done Right", "Introduction to Algorithms", "Analyse re\u0301elle", "Straße und Verkehr",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(c.Search(tt.term)))
		})
	}
}

func TestCatalog_EmptyBeforeFetch(t *testing.T) {
	c := NewCatalog(newStub())

	assert.Empty(t, c.Search("anything"))
}
