package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ingest"
)

// Ingester applies one raw submission body.
type Ingester interface {
	Ingest(ctx context.Context, body []byte) (ingest.Result, error)
}

// SubmissionHandler runs consumed submissions through the normalizer. Validation failures
// are rejected; anything else is returned for retry.
type SubmissionHandler struct {
	ingester Ingester
	logger   *slog.Logger
}

// NewSubmissionHandler constructs a SubmissionHandler.
func NewSubmissionHandler(ingester Ingester, logger *slog.Logger) *SubmissionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionHandler{ingester: ingester, logger: logger}
}

// Handle applies msg.Payload.
func (h *SubmissionHandler) Handle(ctx context.Context, msg Message) error {
	result, err := h.ingester.Ingest(ctx, msg.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return Reject(err)
		}
		return err
	}

	h.logger.Debug("submission applied", "user_id", result.UserID, "days", len(result.Records), "offset", msg.Offset)
	return nil
}
