package api

import (
	"strings"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

type registerUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r registerUserRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return domain.Invalid("first_name", "is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return domain.Invalid("last_name", "is required")
	}
	return nil
}

type createLeagueRequest struct {
	Name string `json:"name"`
}

func (r createLeagueRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.Invalid("name", "league name must not be empty")
	}
	return nil
}

type syncResponse struct {
	UserID  string `json:"user_id"`
	Entries int    `json:"entries"`
	Synced  bool   `json:"synced"`
}

type listResponse struct {
	Items []string `json:"items"`
}

type leaderboardResponse struct {
	Scope     string            `json:"scope"`
	Window    domain.Window     `json:"window"`
	Standings []domain.Standing `json:"standings"`
}

type potPeriodView struct {
	domain.PotPeriod
	DailyPotFormatted      string `json:"daily_pot_formatted"`
	CumulativePotFormatted string `json:"cumulative_pot_formatted"`
}

type potResponse struct {
	Scope      string          `json:"scope"`
	Window     domain.Window   `json:"window"`
	Currency   string          `json:"currency"`
	StakeCents domain.Money    `json:"stake_cents"`
	Periods    []potPeriodView `json:"periods"`
}

func potViews(periods []domain.PotPeriod) []potPeriodView {
	views := make([]potPeriodView, 0, len(periods))
	for _, p := range periods {
		views = append(views, potPeriodView{
			PotPeriod:              p,
			DailyPotFormatted:      p.DailyPot.String(),
			CumulativePotFormatted: p.CumulativePot.String(),
		})
	}
	return views
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
