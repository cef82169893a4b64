package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"draftmark/internal/app"
	"draftmark/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	jsonOutput bool
	verbose    bool
)

// loadConfig reads the config from --config or the default location.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		defaults, err := app.GetDefaults()
		if err != nil {
			return nil, "", fmt.Errorf("getting defaults: %w", err)
		}
		path = defaults.ConfigPath
	}

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, path, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "markup add").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cmd.Context(), cfg, operation, app.Options{
		Passphrase: app.ArchivePassphrase("Archive passphrase: "),
		Console:    cmd.ErrOrStderr(),
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "draftmark",
	Short:        "Markup and feedback annotations for design review rounds",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration, database and archive keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		path := configPath
		if path == "" {
			path = defaults.ConfigPath
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if encrypt, _ := cmd.Flags().GetBool("encrypt"); encrypt {
			cfg.Archive.Encryption.Type = "age"
		}

		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.Setup(cmd.Context(), cfg, app.ArchivePassphrase("New archive passphrase: ")); err != nil {
			return fmt.Errorf("setting up storage: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", path)
		fmt.Fprintf(out, "Base Dir: %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Archive:  %s (encryption: %s)\n", cfg.Archive.Root, cfg.Archive.Encryption.Type)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", path)
		fmt.Fprintf(out, "Base Dir:   %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Log Dir:    %s\n", cfg.LogDir)
		fmt.Fprintf(out, "Database:   %s\n", cfg.Database.Type)
		fmt.Fprintf(out, "Archive:    %s (encryption: %s)\n", cfg.Archive.Type, cfg.Archive.Encryption.Type)
		fmt.Fprintf(out, "Lock:       %s\n", cfg.Lock.Type)
		fmt.Fprintf(out, "Strict feedback transitions: %t\n", cfg.Feedback.EnforceTransitions)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats VERSION",
	Short: "Summarize markups, feedback and comments of a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verify, _ := cmd.Flags().GetBool("verify")

		a, err := newApp(cmd, "stats")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Stats(cmd.Context(), args[0], verify)
		if err != nil {
			return err
		}
		if err := render(cmd, report, statsTable(report)); err != nil {
			return err
		}
		if len(report.Mismatches) > 0 {
			return fmt.Errorf("%d markup(s) have stale comment rollups", len(report.Mismatches))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 && !wantJSON(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded.")
			return nil
		}
		return render(cmd, ops, historyTable(ops))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $DRAFTMARK_CONFIG_PATH or ~/.config/draftmark.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON even on a terminal")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log info messages to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt archived rounds with a new age key pair")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(markupCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("verify", false, "Check cached comment rollups against the threads")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
