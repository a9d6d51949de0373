package api

import (
	"net/http"
	"strings"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

// parseWindow reads start and end from the query string.
func (h *Handler) parseWindow(r *http.Request) (domain.Window, error) {
	q := r.URL.Query()
	return domain.ResolveWindow(h.opts.Calendar, q.Get("start"), q.Get("end"))
}

func scopeParam(r *http.Request) domain.Scope {
	league := strings.TrimSpace(r.URL.Query().Get("league"))
	if league == "" {
		return domain.GlobalScope
	}
	return domain.LeagueScope(league)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	scope := scopeParam(r)
	standings, err := h.lottery.Leaderboard(r.Context(), scope, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if standings == nil {
		standings = []domain.Standing{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Scope: scope.String(), Window: window, Standings: standings})
}

func (h *Handler) pot(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	scope := scopeParam(r)
	periods, err := h.lottery.PotSchedule(r.Context(), scope, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, potResponse{
		Scope:      scope.String(),
		Window:     window,
		Currency:   h.opts.Currency,
		StakeCents: h.lottery.Stake(),
		Periods:    potViews(periods),
	})
}
