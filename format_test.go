package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$0", formatPrice(0))
	assert.Equal(t, "$45", formatPrice(45))
	assert.Equal(t, "$1200", formatPrice(1200))
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	sameYear := time.Date(now.Year(), time.March, 15, 10, 30, 0, 0, time.Local)
	diffYear := time.Date(2020, time.December, 25, 8, 0, 0, 0, time.Local)

	t.Run("same year", func(t *testing.T) {
		result := formatTime(sameYear)
		assert.Contains(t, result, "Mar")
		assert.Contains(t, result, "15")
		assert.Contains(t, result, "10:30")
	})

	t.Run("different year", func(t *testing.T) {
		result := formatTime(diffYear)
		assert.Contains(t, result, "Dec")
		assert.Contains(t, result, "25")
		assert.Contains(t, result, "2020")
	})

	t.Run("zero", func(t *testing.T) {
		assert.Equal(t, "-", formatTime(time.Time{}))
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"Calculus", 40, "Calculus"},
		{"Calculus", 8, "Calculus"},
		{"Calculus: Early Transcendentals", 12, "Calculus:..."},
		{"Analyse réelle", 9, "Analys..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.limit), "truncate(%q, %d)", tt.in, tt.limit)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"ID", "TITLE", "PRICE"}
	rows := [][]string{
		{"1", "Calculus", "$45"},
		{"12", "Linear Algebra", "$5"},
	}

	printTable(&buf, headers, rows)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "ID  TITLE           PRICE", lines[0])
	assert.Equal(t, "1   Calculus        $45", lines[1])
	assert.Equal(t, "12  Linear Algebra  $5", lines[2])
}

func TestNotificationRows_MarksUnread(t *testing.T) {
	rows := notificationRows([]api.Notification{
		{ID: 2, Message: "Price dropped", Read: false},
		{ID: 1, Message: "Price dropped", Read: true},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"*", "2", "-", "Price dropped"}, rows[0])
	assert.Equal(t, " ", rows[1][0])
}

func TestPostRows(t *testing.T) {
	rows := postRows([]api.Post{{
		ID:        7,
		Textbook:  api.Textbook{Title: "Calculus"},
		Price:     45,
		Condition: "good",
		User:      api.User{DisplayName: "Seller"},
	}})

	require.Len(t, rows, 1)
	assert.Equal(t, []string{"7", "Calculus", "$45", "good", "Seller", "-"}, rows[0])
	assert.Len(t, postHeaders, len(rows[0]))
}
