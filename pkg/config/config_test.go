package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("PII_SECRET", "pii")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Analytics.AttributionWindowDays)
	assert.Equal(t, 7.0, cfg.Analytics.DecayHalfLifeDays)
	assert.Equal(t, 90, cfg.Analytics.ChurnThresholdDays)
	assert.Equal(t, 500, cfg.Analytics.BatchSize)
	assert.Equal(t, time.Hour, cfg.Analytics.BenchmarkTTL)
	assert.Equal(t, 5, cfg.Analytics.ConversionMaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.Analytics.SessionIdleTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ATTRIBUTION_WINDOW_DAYS", "14")
	t.Setenv("LTV_BENCHMARK_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Analytics.AttributionWindowDays)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.BenchmarkTTL)
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("PII_SECRET", "pii")

	_, err := Load()
	assert.EqualError(t, err, "missing jwt secret")

	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("PII_SECRET", "")
	_, err = Load()
	assert.EqualError(t, err, "missing pii secret")
}

func TestLoad_SQSRequiresQueue(t *testing.T) {
	setRequired(t)
	t.Setenv("SQS_ENABLED", "true")
	t.Setenv("SQS_CONVERSIONS_QUEUE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}
