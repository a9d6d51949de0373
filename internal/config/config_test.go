package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, DriverPostgres, cfg.StoreDriver)
	require.Equal(t, 5*time.Second, cfg.StoreTimeout)
	require.Equal(t, domain.Money(100), cfg.Stake())
	require.Equal(t, domain.WeekStartMonday, cfg.Week)
	require.Equal(t, time.UTC, cfg.Location)
	require.Len(t, cfg.SeedUsers, 15)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}

func TestLoadLayersFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steplotto.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_driver: memory
store_timeout: 750ms
stake_cents: 250
week_start: sunday
timezone: America/New_York
seed_users: [Ann, Ben]
http_address: ":9000"
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDRESS", ":7000")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("OUTBOX_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	require.Equal(t, domain.Money(250), cfg.Stake())
	require.Equal(t, domain.WeekStartSunday, cfg.Calendar().WeekStart)
	require.Equal(t, "America/New_York", cfg.Location.String())
	require.Equal(t, []string{"Ann", "Ben"}, cfg.SeedUsers)
	require.Equal(t, ":7000", cfg.HTTPAddress, "environment wins over the file")
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.False(t, cfg.OutboxEnabled)
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("STORE_TIMEOUT", "soon")
	t.Setenv("INGEST_RATE_RPS", "fast")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, 5*time.Second, cfg.StoreTimeout)
	require.InDelta(t, 5.0, cfg.IngestRateRPS, 0.0001)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":     {"STORE_DRIVER": "sqlite"},
		"week":       {"WEEK_START": "friday"},
		"timezone":   {"TIMEZONE": "Mars/Olympus"},
		"stake":      {"STAKE_CENTS": "-1"},
		"seed range": {"SEED_MIN_STEPS": "20000"},
		"file":       {"CONFIG_FILE": filepath.Join(t.TempDir(), "missing.yaml")},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
