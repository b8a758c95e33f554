package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func newWatchlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Track posts for price drops",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List watched posts",
			Args:  cobra.NoArgs,
			RunE:  runWatchlistList,
		},
		&cobra.Command{
			Use:   "add POST [TEXTBOOK]",
			Short: "Watch a post",
			Long: `Watch a post. The textbook ID is looked up from the post when
omitted.`,
			Args: cobra.RangeArgs(1, 2),
			RunE: runWatchlistAdd,
		},
		&cobra.Command{
			Use:   "rm POST",
			Short: "Stop watching a post",
			Args:  cobra.ExactArgs(1),
			RunE:  runWatchlistRm,
		},
	)

	return cmd
}

// watchOutput is one row of `watchlist list --json`. Post is absent when the
// watched post no longer exists.
type watchOutput struct {
	api.WatchlistEntry
	Post *api.Post `json:"post,omitempty"`
}

func runWatchlistList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	if err := cc.read(ctx, "posts", cc.Session.Posts().Refresh); err != nil {
		return err
	}

	entries := cc.Session.Watchlist().Entries()
	out := make([]watchOutput, 0, len(entries))

	for _, e := range entries {
		row := watchOutput{WatchlistEntry: e}
		if post, ok := cc.Session.Posts().Get(e.PostID); ok {
			row.Post = &post
		}

		out = append(out, row)
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	if len(out) == 0 {
		cc.Statusf("Your watchlist is empty.\n")
		return nil
	}

	rows := make([][]string, 0, len(out))

	for _, w := range out {
		title, price := "(post removed)", "-"
		if w.Post != nil {
			title, price = truncate(w.Post.Textbook.Title, 40), formatPrice(w.Post.Price)
		}

		rows = append(rows, []string{strconv.Itoa(w.PostID), title, price, formatTime(w.AddedAt)})
	}

	printTable(cmd.OutOrStdout(), []string{"POST", "TITLE", "PRICE", "ADDED"}, rows)

	return nil
}

func runWatchlistAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	postID, err := parseID("post", args[0])
	if err != nil {
		return err
	}

	textbookID := 0
	if len(args) == 2 {
		if textbookID, err = parseID("textbook", args[1]); err != nil {
			return err
		}
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	if textbookID == 0 {
		post, err := lookupPost(ctx, cc, postID)
		if err != nil {
			return err
		}

		textbookID = post.Textbook.ID
	}

	if err := cc.Session.Watchlist().Add(ctx, postID, textbookID); err != nil {
		return fmt.Errorf("watching post %d: %w", postID, err)
	}

	cc.Statusf("Watching post %d.\n", postID)

	return nil
}

func runWatchlistRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	postID, err := parseID("post", args[0])
	if err != nil {
		return err
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	if err := cc.Session.Watchlist().Remove(ctx, postID); err != nil {
		return fmt.Errorf("unwatching post %d: %w", postID, err)
	}

	cc.Statusf("Stopped watching post %d.\n", postID)

	return nil
}
