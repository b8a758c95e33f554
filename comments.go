package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookswap/bookswap-cli/internal/collection"
)

func newCommentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Comment on posts",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add POST TEXT...",
			Short: "Comment on a post",
			Args:  cobra.MinimumNArgs(2),
			RunE:  runCommentsAdd,
		},
		&cobra.Command{
			Use:   "rm POST COMMENT",
			Short: "Delete your comment",
			Args:  cobra.ExactArgs(2),
			RunE:  runCommentsRm,
		},
	)

	return cmd
}

func runCommentsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	postID, err := parseID("post", args[0])
	if err != nil {
		return err
	}

	text := strings.Join(args[1:], " ")

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	if err := cc.Session.Comments().Submit(ctx, postID, text); err != nil {
		if errors.Is(err, collection.ErrEmptyComment) {
			return errors.New("comment text is empty")
		}

		return fmt.Errorf("commenting on post %d: %w", postID, err)
	}

	cc.Statusf("Comment added (%d on this post).\n", len(cc.Session.Comments().For(postID)))

	return nil
}

func runCommentsRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	postID, err := parseID("post", args[0])
	if err != nil {
		return err
	}

	commentID, err := parseID("comment", args[1])
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

	if err := cc.Session.Comments().Delete(ctx, postID, commentID); err != nil {
		return fmt.Errorf("deleting comment %d: %w", commentID, err)
	}

	cc.Statusf("Comment deleted.\n")

	return nil
}
