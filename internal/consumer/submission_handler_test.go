package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
	"github.com/chrisnesbitt427/steplotto/internal/ingest"
	"github.com/chrisnesbitt427/steplotto/internal/ledger"
	"github.com/chrisnesbitt427/steplotto/internal/persistence/memory"
)

func TestSubmissionHandlerAppliesPayload(t *testing.T) {
	store := memory.NewStore()
	normalizer := ingest.NewNormalizer(ledger.NewService(store), testLogger(t))
	handler := NewSubmissionHandler(normalizer, testLogger(t))

	err := handler.Handle(context.Background(), Message{
		Payload: []byte(`{"name":"alice","steps":[100,200,300],"date":"2024-01-10"}`),
	})
	require.NoError(t, err)

	totals, err := store.DailyTotals(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []domain.DailyTotal{
		{Date: domain.NewDate(2024, time.January, 8), Steps: 100},
		{Date: domain.NewDate(2024, time.January, 9), Steps: 200},
		{Date: domain.NewDate(2024, time.January, 10), Steps: 300},
	}, totals)
}

func TestSubmissionHandlerRejectsInvalidPayload(t *testing.T) {
	normalizer := ingest.NewNormalizer(ledger.NewService(memory.NewStore()), testLogger(t))
	handler := NewSubmissionHandler(normalizer, testLogger(t))

	err := handler.Handle(context.Background(), Message{Payload: []byte(`{"name":"alice","steps":-1,"date":"2024-01-10"}`)})
	require.True(t, IsRejected(err))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmissionHandlerRetriesStoreFailures(t *testing.T) {
	handler := NewSubmissionHandler(failingIngester{err: domain.StoreError("upsert steps", context.DeadlineExceeded)}, testLogger(t))

	err := handler.Handle(context.Background(), Message{Payload: []byte(`{}`)})
	require.Error(t, err)
	require.False(t, IsRejected(err))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

type failingIngester struct{ err error }

func (f failingIngester) Ingest(context.Context, []byte) (ingest.Result, error) {
	return ingest.Result{}, f.err
}
