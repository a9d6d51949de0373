package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordStepsAppliedUpdatesWatermark(t *testing.T) {
	before := testutil.ToFloat64(recordsAppliedCounter)
	ts := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)

	RecordStepsApplied(3, ts)
	RecordStepsApplied(0, ts.Add(time.Hour))

	require.Equal(t, before+3, testutil.ToFloat64(recordsAppliedCounter))
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(lastRecordedGauge))
}

func TestRecordSubmissionLabels(t *testing.T) {
	before := testutil.ToFloat64(submissionsCounter.WithLabelValues("backfill", "ok"))
	RecordSubmission("backfill", "ok")
	require.Equal(t, before+1, testutil.ToFloat64(submissionsCounter.WithLabelValues("backfill", "ok")))
}

func TestObserveAggregation(t *testing.T) {
	ObserveAggregation("leaderboard", time.Now().Add(-10*time.Millisecond))

	var metric dto.Metric
	hist, err := aggregationDuration.GetMetricWithLabelValues("leaderboard")
	require.NoError(t, err)
	require.NoError(t, hist.(interface{ Write(*dto.Metric) error }).Write(&metric))
	require.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(1))
}
