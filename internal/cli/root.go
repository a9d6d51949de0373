// Package cli implements lottoctl, the operator command line for a StepLotto deployment.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Deps are the collaborators lottoctl needs. Tests replace them with in-memory versions.
type Deps struct {
	LoadConfig func() (config.Config, *slog.Logger, error)
	Open       func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error)
}

// DefaultDeps loads configuration from the environment and connects the configured store.
func DefaultDeps() Deps {
	return Deps{LoadConfig: app.LoadConfig, Open: app.New}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(DefaultDeps())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// session carries state resolved once per invocation.
type session struct {
	deps   Deps
	cfg    config.Config
	logger *slog.Logger
	output string
}

// withApp opens the store, runs fn, and releases the store.
func (s *session) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := s.deps.Open(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newRootCmd(deps Deps) *cobra.Command {
	s := &session{deps: deps}

	rootCmd := &cobra.Command{
		Use:           "lottoctl",
		Short:         "StepLotto operator CLI",
		Long:          "Command-line tooling for migrations, ingestion, leaderboards, and the outbox DLQ.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(s.output); err != nil {
				return err
			}
			cfg, logger, err := s.deps.LoadConfig()
			if err != nil {
				return err
			}
			s.cfg, s.logger = cfg, logger
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(
		newMigrateCmd(s),
		newIngestCmd(s),
		newLeaderboardCmd(s),
		newPotCmd(s),
		newSeedCmd(s),
		newTokenCmd(s),
		newDLQCmd(s),
		newVersionCmd(s),
	)
	return rootCmd
}

func newVersionCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": version, "commit": commit})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lottoctl version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
