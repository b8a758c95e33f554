package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func newPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Browse and manage marketplace posts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Args:  cobra.NoArgs,
		RunE:  runPostsList,
	}
	list.Flags().Bool("mine", false, "only your own posts")
	list.Flags().String("near", "", "only posts near LAT,LNG")
	list.Flags().Float64("radius", 25, "search radius in miles for --near")

	show := &cobra.Command{
		Use:   "show POST",
		Short: "Show a post and its comments",
		Args:  cobra.ExactArgs(1),
		RunE:  runPostsShow,
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Sell a textbook",
		Long: `Create a post. Pass --textbook to sell an existing catalog entry, or
--title, --author and --isbn to add the textbook to the catalog first.`,
		Args: cobra.NoArgs,
		RunE: runPostsCreate,
	}
	create.Flags().Int("textbook", 0, "existing textbook ID")
	create.Flags().String("title", "", "textbook title")
	create.Flags().String("author", "", "textbook author")
	create.Flags().String("isbn", "", "textbook ISBN")
	create.Flags().String("subject", "", "textbook subject")
	addListingFlags(create)

	edit := &cobra.Command{
		Use:   "edit POST",
		Short: "Change the price or condition of your post",
		Args:  cobra.ExactArgs(1),
		RunE:  runPostsEdit,
	}
	addListingFlags(edit)

	rm := &cobra.Command{
		Use:   "rm POST",
		Short: "Delete your post",
		Args:  cobra.ExactArgs(1),
		RunE:  runPostsRm,
	}

	cmd.AddCommand(list, show, create, edit, rm)

	return cmd
}

func addListingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("price", 0, "price in whole dollars")
	cmd.Flags().String("condition", "", "condition, e.g. \"like new\"")
	cmd.Flags().String("location", "", "pickup location as LAT,LNG")
}

// parseID parses a positive numeric identifier argument.
func parseID(kind, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", kind, s)
	}

	return id, nil
}

// parseLatLng parses "LAT,LNG".
func parseLatLng(s string) (lat, lng float64, err error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid location %q: want LAT,LNG", s)
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude in %q", s)
	}

	lng, err = strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude in %q", s)
	}

	return lat, lng, nil
}

func runPostsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	mine, _ := cmd.Flags().GetBool("mine")
	near, _ := cmd.Flags().GetString("near")
	radius, _ := cmd.Flags().GetFloat64("radius")

	var lat, lng float64

	if near != "" {
		var err error
		if lat, lng, err = parseLatLng(near); err != nil {
			return err
		}
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if err := cc.read(ctx, "posts", cc.Session.Posts().Refresh); err != nil {
		return err
	}

	posts := cc.Session.Posts().List()

	switch {
	case mine:
		user, err := cc.requireUser()
		if err != nil {
			return err
		}

		posts = cc.Session.Posts().ByOwner(user.ID)
	case near != "":
		posts = cc.Session.Posts().Near(lat, lng, radius)
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), posts)
	}

	if len(posts) == 0 {
		cc.Statusf("No posts.\n")
		return nil
	}

	printTable(cmd.OutOrStdout(), postHeaders, postRows(posts))

	return nil
}

// postOutput is the JSON schema for `posts show --json`.
type postOutput struct {
	api.Post
	Comments []api.Comment `json:"comments"`
	Watching bool          `json:"watching"`
}

func runPostsShow(cmd *cobra.Command, args []string) error {
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

	post, err := lookupPost(ctx, cc, postID)
	if err != nil {
		return err
	}

	err = cc.read(ctx, "comments", func(ctx context.Context) error {
		return cc.Session.Comments().Fetch(ctx, postID)
	})
	if err != nil {
		return err
	}

	out := postOutput{
		Post:     post,
		Comments: cc.Session.Comments().For(postID),
		Watching: cc.Session.Watchlist().Contains(postID),
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Post %d: %s\n", post.ID, post.Textbook.Title)
	fmt.Fprintf(w, "  Author:    %s\n", post.Textbook.Author)
	fmt.Fprintf(w, "  ISBN:      %s\n", post.Textbook.ISBN)
	fmt.Fprintf(w, "  Price:     %s\n", formatPrice(post.Price))
	fmt.Fprintf(w, "  Condition: %s\n", post.Condition)
	fmt.Fprintf(w, "  Seller:    %s\n", post.User.DisplayName)
	fmt.Fprintf(w, "  Listed:    %s\n", formatTime(post.CreatedAt))

	if out.Watching {
		fmt.Fprintln(w, "  (on your watchlist)")
	}

	if len(out.Comments) > 0 {
		fmt.Fprintln(w)

		rows := make([][]string, 0, len(out.Comments))
		for _, c := range out.Comments {
			rows = append(rows, []string{strconv.Itoa(c.ID), c.User.DisplayName, formatTime(c.CreatedAt), c.Text})
		}

		printTable(w, []string{"ID", "FROM", "WHEN", "COMMENT"}, rows)
	}

	return nil
}

// lookupPost refreshes the posts cache and returns postID from it.
func lookupPost(ctx context.Context, cc *CLIContext, postID int) (api.Post, error) {
	if err := cc.read(ctx, "posts", cc.Session.Posts().Refresh); err != nil {
		return api.Post{}, err
	}

	post, ok := cc.Session.Posts().Get(postID)
	if !ok {
		return api.Post{}, fmt.Errorf("post %d not found", postID)
	}

	return post, nil
}

// listingDraft overlays the listing flags the user set onto base.
func listingDraft(cmd *cobra.Command, base api.PostDraft) (api.PostDraft, error) {
	flags := cmd.Flags()

	if flags.Changed("price") {
		price, _ := flags.GetInt("price")
		if price < 0 {
			return base, errors.New("price must not be negative")
		}

		base.Price = price
	}

	if flags.Changed("condition") {
		base.Condition, _ = flags.GetString("condition")
	}

	if flags.Changed("location") {
		loc, _ := flags.GetString("location")

		lat, lng, err := parseLatLng(loc)
		if err != nil {
			return base, err
		}

		base.Latitude, base.Longitude = &lat, &lng
	}

	return base, nil
}

func runPostsCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	draft, err := listingDraft(cmd, api.PostDraft{})
	if err != nil {
		return err
	}

	if !flags.Changed("price") {
		return errors.New("--price is required")
	}

	textbookID, _ := flags.GetInt("textbook")
	title, _ := flags.GetString("title")

	if (textbookID == 0) == (title == "") {
		return errors.New("pass either --textbook or --title")
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cc.requireUser(); err != nil {
		return err
	}

	var post *api.Post

	if textbookID != 0 {
		draft.TextbookID = textbookID
		post, err = cc.Session.Posts().Create(ctx, draft)
	} else {
		author, _ := flags.GetString("author")
		isbn, _ := flags.GetString("isbn")
		subject, _ := flags.GetString("subject")

		post, err = cc.Session.Posts().Publish(ctx,
			api.TextbookDraft{Title: title, Author: author, ISBN: isbn, Subject: subject}, draft)
	}

	if err != nil {
		return fmt.Errorf("creating post: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), post)
	}

	cc.Statusf("Created post %d.\n", post.ID)

	return nil
}

func runPostsEdit(cmd *cobra.Command, args []string) error {
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

	user, err := cc.requireUser()
	if err != nil {
		return err
	}

	current, err := lookupPost(ctx, cc, postID)
	if err != nil {
		return err
	}

	if current.User.ID != user.ID {
		return fmt.Errorf("post %d belongs to someone else", postID)
	}

	// Updates replace every editable field, so start from the current post.
	draft, err := listingDraft(cmd, api.PostDraft{
		TextbookID: current.Textbook.ID,
		Price:      current.Price,
		Condition:  current.Condition,
		ImageID:    current.ImageID,
		Latitude:   current.Latitude,
		Longitude:  current.Longitude,
	})
	if err != nil {
		return err
	}

	post, err := cc.Session.Posts().Update(ctx, postID, draft)
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), post)
	}

	cc.Statusf("Updated post %d (%s, %s).\n", post.ID, formatPrice(post.Price), post.Condition)

	return nil
}

func runPostsRm(cmd *cobra.Command, args []string) error {
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

	if err := cc.Session.Posts().Delete(ctx, postID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	cc.Statusf("Deleted post %d.\n", postID)

	return nil
}
