package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

// maxIngestBody bounds a submission; a year of backfill is a few kilobytes.
const maxIngestBody = 1 << 20

func setIngestCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// ingest accepts a single-day or backfill submission and replies in plain text.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	setIngestCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeText(w, http.StatusBadRequest, "Invalid JSON: unable to read body")
		return
	}

	result, err := h.ingester.Ingest(r.Context(), body)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeText(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("ingestion failed", "kind", domain.Classify(err).String(), "error", err)
		writeText(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	writeText(w, http.StatusOK, result.Message())
}
