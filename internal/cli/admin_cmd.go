package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/auth"
	"github.com/chrisnesbitt427/steplotto/internal/outbox"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/migrations"
)

func newMigrateCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrations.Up(cmd.Context(), s.cfg.PostgresURL); err != nil {
				return err
			}
			version, err := migrations.Version(cmd.Context(), s.cfg.PostgresURL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return err
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, err := migrations.Version(cmd.Context(), s.cfg.PostgresURL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return err
		},
	})
	return cmd
}

func newTokenCmd(s *session) *cobra.Command {
	var (
		user   string
		scopes string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(s.cfg.JWTSecret) == "" {
				return fmt.Errorf("JWT_SECRET is not configured")
			}
			granted := auth.DefaultScopes
			if scopes != "" {
				granted = strings.Fields(strings.ReplaceAll(scopes, ",", " "))
			}
			token, err := auth.Issue(auth.Config{Secret: s.cfg.JWTSecret, Issuer: s.cfg.JWTIssuer}, user, granted, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Token subject")
	cmd.Flags().StringVar(&scopes, "scopes", "", "Comma separated scopes (defaults to the player scopes)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newDLQCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay the outbox dead-letter queue",
	}

	var batch int
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Run one DLQ pass, requeueing due entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd.Context(), func(a *app.App) error {
				pool, err := a.RequirePool("dlq replay")
				if err != nil {
					return err
				}
				manager := outbox.NewDLQManager(pool, s.cfg.DLQMaxRetries, s.cfg.DLQBaseDelay)
				processed, err := manager.RunOnce(cmd.Context(), batch)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "processed %d entries\n", processed)
				return err
			})
		},
	}
	replay.Flags().IntVar(&batch, "batch", 50, "Maximum entries to process")
	cmd.AddCommand(replay)
	return cmd
}
