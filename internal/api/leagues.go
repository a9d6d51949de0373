package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chrisnesbitt427/steplotto/internal/auth"
	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

// pathParam returns the decoded value of a route parameter. chi matches against RawPath when
// the request carries one, so only then is the captured segment still escaped.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw, nil
	}
	value, err := url.PathUnescape(raw)
	if err != nil {
		return "", domain.Invalid(name, "malformed escape in %q", raw)
	}
	return value, nil
}

// leagueParam returns the league name from the path.
func leagueParam(r *http.Request) (string, error) {
	name, err := pathParam(r, "league")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", domain.Invalid("league", "league name must not be empty")
	}
	return name, nil
}

func (h *Handler) createLeague(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req createLeagueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	league, err := h.registry.CreateLeague(r.Context(), req.Name, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/leagues/"+url.PathEscape(league.LeagueID))
	writeJSON(w, http.StatusCreated, league)
}

func (h *Handler) joinLeague(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	leagueID, err := leagueParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	membership, err := h.registry.JoinLeague(r.Context(), claims.Subject, leagueID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	leagueID, err := leagueParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	members, err := h.registry.MembersOf(r.Context(), leagueID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: nonNil(members)})
}

func (h *Handler) leagueOverview(w http.ResponseWriter, r *http.Request) {
	leagueID, err := leagueParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	window, err := h.parseWindow(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	overview, err := h.lottery.LeagueOverview(r.Context(), leagueID, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
