package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bookswap/bookswap-cli/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagServer     string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// resolvedCfgPath is the file it was read from (which may not exist).
var (
	resolvedCfg     *config.Config
	resolvedCfgPath string
	resolvedEnv     config.EnvOverrides
	resolvedCLI     config.CLIOverrides
)

// skipConfigCommands lists commands that must work even when the config
// file is broken. Matched by CommandPath().
var skipConfigCommands = map[string]bool{
	"bookswap config path": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookswap",
		Short:   "Textbook marketplace client",
		Long:    "Browse, sell and watch used textbooks from the command line.",
		Version: version,
		// Errors are printed by exitOnError.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagServer, "server", "", "marketplace API base URL")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show informational log messages")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "show debug log messages")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newSignupCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newPostsCmd())
	cmd.AddCommand(newWatchlistCmd())
	cmd.AddCommand(newNotificationsCmd())
	cmd.AddCommand(newCommentsCmd())
	cmd.AddCommand(newTextbooksCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// cliOverrides collects the config-relevant flags the user explicitly set.
func cliOverrides(cmd *cobra.Command) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	if cmd.Flags().Changed("server") {
		server := flagServer
		cli.ServerURL = &server
	}

	return cli
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	env, err := config.ReadEnvOverrides()
	if err != nil {
		return err
	}

	cli := cliOverrides(cmd)

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	resolvedCfgPath = config.ResolvePath(env, cli)
	resolvedEnv = env
	resolvedCLI = cli

	return nil
}

// flagLevel returns the level forced by --verbose, --debug or --quiet.
func flagLevel() (slog.Level, bool) {
	switch {
	case flagDebug:
		return slog.LevelDebug, true
	case flagVerbose:
		return slog.LevelInfo, true
	case flagQuiet:
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// bootstrapLogger is used before configuration is available. Default level
// is Warn; CLI flags override it.
func bootstrapLogger() *slog.Logger {
	level := slog.LevelWarn
	if l, ok := flagLevel(); ok {
		level = l
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose, --debug
// and --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	return newLogger(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
}

func newLogger(w io.Writer, terminal bool) *slog.Logger {
	level := slog.LevelWarn
	format := "auto"

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}

		format = resolvedCfg.LogFormat
	}

	if l, ok := flagLevel(); ok {
		level = l
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !terminal) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
