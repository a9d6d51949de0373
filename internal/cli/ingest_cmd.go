package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/seed"
)

func newIngestCmd(s *session) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Apply a submission payload from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			return s.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Normalizer.Ingest(cmd.Context(), body)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Message())
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload path, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readPayload(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return body, nil
}

func newSeedCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic step data",
	}

	var user string
	sample := &cobra.Command{
		Use:   "sample",
		Short: "Write a fixed seven-day history ending today for one user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub, err := seed.SampleWeek(user, s.cfg.Calendar().Today())
			if err != nil {
				return err
			}
			return s.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Normalizer.Submit(cmd.Context(), sub)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Message())
				return err
			})
		},
	}
	sample.Flags().StringVar(&user, "user", "", "User id to write the sample for")
	_ = sample.MarkFlagRequired("user")

	run := &cobra.Command{
		Use:   "run",
		Short: "Submit one random count for every configured seed user now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd.Context(), func(a *app.App) error {
				gen, err := seed.NewGenerator(a.Normalizer, s.cfg.SeedUsers, s.cfg.SeedMinSteps, s.cfg.SeedMaxSteps,
					s.cfg.Calendar(), seed.WithLogger(s.logger))
				if err != nil {
					return err
				}
				n, err := gen.RunOnce(cmd.Context())
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "submitted %d of %d users\n", n, len(s.cfg.SeedUsers))
				return err
			})
		},
	}

	cmd.AddCommand(sample, run)
	return cmd
}
