package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-10")
	require.NoError(t, err)
	require.Equal(t, NewDate(2024, time.January, 10), d)
	require.Equal(t, "2024-01-10", d.String())

	for _, bad := range []string{"", " 2024-01-10 ", "2024-01-10\n", "2024-1-10", "10/01/2024", "2024-02-30", "yesterday"} {
		_, err := ParseDate(bad)
		require.Error(t, err, bad)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.March, 1)

	require.Equal(t, "2024-02-29", d.AddDays(-1).String())
	require.Equal(t, 1, d.AddDays(-1).DaysUntil(d))
	require.Equal(t, -3, d.DaysUntil(d.AddDays(-3)))
	require.True(t, d.AddDays(-1).Before(d))
	require.True(t, d.After(d.AddDays(-1)))
	require.Equal(t, 0, d.Compare(NewDate(2024, time.March, 1)))

	// DST transitions must not shift day arithmetic.
	require.Equal(t, 365, NewDate(2023, time.January, 1).DaysUntil(NewDate(2024, time.January, 1)))
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	instant := time.Date(2024, time.January, 9, 20, 0, 0, 0, time.UTC)

	require.Equal(t, "2024-01-09", DateOf(instant, nil).String())
	require.Equal(t, "2024-01-10", DateOf(instant, loc).String())
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		Date Date `json:"date"`
	}

	raw, err := json.Marshal(wrapper{Date: NewDate(2024, time.January, 8)})
	require.NoError(t, err)
	require.JSONEq(t, `{"date":"2024-01-08"}`, string(raw))

	var decoded wrapper
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.True(t, decoded.Date.Equal(NewDate(2024, time.January, 8)))

	require.Error(t, json.Unmarshal([]byte(`{"date":"08-01-2024"}`), &decoded))
}
