package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bookswap/bookswap-cli/internal/api"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
// Method form of statusf, avoids threading `quiet bool` through call chains.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// formatPrice renders whole dollars.
func formatPrice(dollars int) string {
	return "$" + strconv.Itoa(dollars)
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	now := time.Now()
	t = t.Local()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// truncate shortens s to limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}

	if limit <= 3 {
		return string(r[:limit])
	}

	return string(r[:limit-3]) + "..."
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	// Compute column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

func postRows(posts []api.Post) [][]string {
	rows := make([][]string, 0, len(posts))

	for _, p := range posts {
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			truncate(p.Textbook.Title, 40),
			formatPrice(p.Price),
			p.Condition,
			p.User.DisplayName,
			formatTime(p.CreatedAt),
		})
	}

	return rows
}

var postHeaders = []string{"ID", "TITLE", "PRICE", "CONDITION", "SELLER", "LISTED"}

func notificationRows(ns []api.Notification) [][]string {
	rows := make([][]string, 0, len(ns))

	for _, n := range ns {
		mark := " "
		if !n.Read {
			mark = "*"
		}

		rows = append(rows, []string{mark, strconv.Itoa(n.ID), formatTime(n.CreatedAt), n.Message})
	}

	return rows
}

var notificationHeaders = []string{"", "ID", "WHEN", "MESSAGE"}
