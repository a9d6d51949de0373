package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrisnesbitt427/steplotto/internal/app"
	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

type windowFlags struct {
	league string
	start  string
	end    string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.league, "league", "", "League name (global cohort when omitted)")
	cmd.Flags().StringVar(&f.start, "start", "", "First day, YYYY-MM-DD (defaults to the current week)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last day, YYYY-MM-DD")
}

func (f *windowFlags) resolve(cal domain.Calendar) (domain.Scope, domain.Window, error) {
	window, err := domain.ResolveWindow(cal, f.start, f.end)
	if err != nil {
		return domain.Scope{}, domain.Window{}, err
	}
	if league := strings.TrimSpace(f.league); league != "" {
		return domain.LeagueScope(league), window, nil
	}
	return domain.GlobalScope, window, nil
}

func newLeaderboardCmd(s *session) *cobra.Command {
	var flags windowFlags
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank a cohort by steps inside a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, window, err := flags.resolve(s.cfg.Calendar())
			if err != nil {
				return err
			}
			return s.withApp(cmd.Context(), func(a *app.App) error {
				standings, err := a.Engine.Leaderboard(cmd.Context(), scope, window)
				if err != nil {
					return err
				}
				if s.output == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"scope":     scope.String(),
						"window":    window,
						"standings": standings,
					})
				}
				rows := make([][]string, 0, len(standings))
				for _, st := range standings {
					rows = append(rows, []string{
						strconv.Itoa(st.Rank),
						st.UserID,
						strconv.FormatInt(st.TotalSteps, 10),
						strconv.FormatFloat(st.WinProbability, 'f', 1, 64) + "%",
					})
				}
				return printTable(cmd.OutOrStdout(), []string{"RANK", "USER", "STEPS", "WIN CHANCE"}, rows)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newPotCmd(s *session) *cobra.Command {
	var flags windowFlags
	cmd := &cobra.Command{
		Use:   "pot",
		Short: "Show the daily pot schedule for a cohort",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, window, err := flags.resolve(s.cfg.Calendar())
			if err != nil {
				return err
			}
			return s.withApp(cmd.Context(), func(a *app.App) error {
				periods, err := a.Engine.PotSchedule(cmd.Context(), scope, window)
				if err != nil {
					return err
				}
				if s.output == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"scope":       scope.String(),
						"window":      window,
						"currency":    s.cfg.Currency,
						"stake_cents": a.Engine.Stake(),
						"periods":     periods,
					})
				}
				rows := make([][]string, 0, len(periods))
				for _, p := range periods {
					rows = append(rows, []string{
						p.Date.String(),
						strconv.FormatInt(p.TotalSteps, 10),
						strconv.Itoa(p.PayingPlayers),
						p.DailyPot.String(),
						p.CumulativePot.String(),
					})
				}
				header := []string{"DATE", "STEPS", "PLAYERS", "DAILY " + s.cfg.Currency, "CUMULATIVE " + s.cfg.Currency}
				return printTable(cmd.OutOrStdout(), header, rows)
			})
		},
	}
	flags.register(cmd)
	return cmd
}
