package api

import (
	"encoding/json"
	"net/http"

	"github.com/chrisnesbitt427/steplotto/internal/auth"
)

// registerUser registers the token subject.
func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	user, err := h.registry.RegisterUser(r.Context(), claims.Subject, req.FirstName, req.LastName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "userID")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	user, err := h.registry.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// syncStatus reports whether the caller's automation has delivered any steps yet.
func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	count, err := h.sync.CountEntries(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{UserID: claims.Subject, Entries: count, Synced: count > 0})
}

func (h *Handler) personalStats(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	stats, err := h.lottery.PersonalStats(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) myLeagues(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	leagues, err := h.registry.LeaguesOf(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: nonNil(leagues)})
}
