package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bookswap/bookswap-cli/internal/api"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in to the marketplace",
		Long: `Sign in with email and password. The password is read from
BOOKSWAP_PASSWORD when set, otherwise from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: runLogin,
	}

	return cmd
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup EMAIL",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignup,
	}

	cmd.Flags().String("name", "", "display name")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget saved cookies",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		RunE:  runWhoami,
	}
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage your account",
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Permanently delete your account",
		RunE:  runAccountDelete,
	}
	del.Flags().Bool("yes", false, "confirm deletion")

	cmd.AddCommand(del)

	return cmd
}

// Terminal hooks, replaced in tests.
var (
	isTerminal     = isatty.IsTerminal
	readHiddenLine = term.ReadPassword
)

// readPassword returns BOOKSWAP_PASSWORD if set. On a terminal it prompts
// and reads without echo; otherwise it reads the first line of in.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if resolvedEnv.Password != "" {
		return resolvedEnv.Password, nil
	}

	var line string

	if f, ok := in.(*os.File); ok && isTerminal(f.Fd()) {
		fmt.Fprint(prompt, "Password: ")

		b, err := readHiddenLine(int(f.Fd()))
		fmt.Fprintln(prompt)

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		line = string(b)
	} else {
		var err error

		line, err = bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}

	return password, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	password, err := readPassword(cmd.InOrStdin(), os.Stderr)
	if err != nil {
		return err
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	ok, err := cc.Session.Login(ctx, api.Credentials{Email: args[0], Password: password, Remember: true})
	if !ok {
		if errors.Is(err, api.ErrAuthorizationRejected) {
			return errors.New("invalid email or password")
		}

		return fmt.Errorf("login: %w", err)
	}

	if err != nil {
		cc.Logger.Warn("signed in but could not load your data", slog.String("error", err.Error()))
	}

	user, _ := cc.Session.User()
	cc.Statusf("Signed in as %s.\n", user.Email)

	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, _ := cmd.Flags().GetString("name")

	password, err := readPassword(cmd.InOrStdin(), os.Stderr)
	if err != nil {
		return err
	}

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	ok, err := cc.Session.Signup(ctx, api.Registration{Email: args[0], Password: password, Name: name})
	if !ok {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return fmt.Errorf("signup: %s", apiErr.Message)
		}

		return fmt.Errorf("signup: %w", err)
	}

	if err != nil {
		cc.Logger.Warn("account created but could not load your data", slog.String("error", err.Error()))
	}

	cc.Statusf("Account created, signed in as %s.\n", args[0])

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	cc.forget = true

	if _, err := cc.requireUser(); err != nil {
		cc.Statusf("Not signed in.\n")
		return nil
	}

	if err := cc.Session.Logout(ctx); err != nil {
		return fmt.Errorf("signed out locally, but the server did not confirm: %w", err)
	}

	cc.Statusf("Signed out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Watching    int    `json:"watching"`
	Unread      int    `json:"unread"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc, err := startSession(cmd.Context())
	if err != nil {
		return err
	}
	defer cc.Close()

	snap := cc.Session.Snapshot()
	if snap.User == nil {
		return errNotLoggedIn
	}

	out := whoamiOutput{
		ID:          snap.User.ID,
		Email:       snap.User.Email,
		DisplayName: snap.User.DisplayName,
		Watching:    len(snap.Watchlist),
		Unread:      snap.Unread,
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "User:     %s <%s> (id %d)\n", out.DisplayName, out.Email, out.ID)
	fmt.Fprintf(w, "Watching: %d posts\n", out.Watching)
	fmt.Fprintf(w, "Unread:   %d notifications\n", out.Unread)

	return nil
}

func runAccountDelete(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errors.New("refusing to delete the account without --yes")
	}

	ctx := cmd.Context()

	cc, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	user, err := cc.requireUser()
	if err != nil {
		return err
	}

	if err := cc.Session.DeleteAccount(ctx); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	cc.forget = true
	cc.Statusf("Account %s deleted.\n", user.Email)

	return nil
}
