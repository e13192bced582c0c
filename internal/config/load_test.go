package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("nonexistent")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, "adspend-finance-core", cfg.Application.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "reconciliation_jobs", cfg.Kafka.JobTopic)
	assert.Equal(t, "reconciliation_jobs_dlq", cfg.Kafka.DLQTopic)
	assert.Equal(t, "reconciliation-processor-group", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollingInterval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 10, cfg.WorkerPool.Size)
	assert.Equal(t, 2.0, cfg.Topup.FeePercent)
	assert.Equal(t, 0.01, cfg.Reconciliation.ToleranceAmount)
	assert.Equal(t, 2.0, cfg.Reconciliation.LowThresholdPct)
	assert.Equal(t, 5.0, cfg.Reconciliation.MediumThresholdPct)
	assert.Equal(t, "migrations/postgres", cfg.Postgres.MigrationsPath)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("TOPUP_FEE_PERCENT", "3.5")
	t.Setenv("RECON_MEDIUM_THRESHOLD_PCT", "10.0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig("nonexistent")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 3.5, cfg.Topup.FeePercent)
	assert.Equal(t, 10.0, cfg.Reconciliation.MediumThresholdPct)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := LoadConfig("nonexistent")
		require.NoError(t, err)
		return cfg
	}

	t.Run("invalid port", func(t *testing.T) {
		cfg := valid(t)
		cfg.Server.Port = 0
		assert.Error(t, cfg.validate())
	})

	t.Run("empty postgres url", func(t *testing.T) {
		cfg := valid(t)
		cfg.Postgres.URL = ""
		assert.Error(t, cfg.validate())
	})

	t.Run("negative fee percent", func(t *testing.T) {
		cfg := valid(t)
		cfg.Topup.FeePercent = -1
		assert.Error(t, cfg.validate())
	})

	t.Run("medium threshold below low", func(t *testing.T) {
		cfg := valid(t)
		cfg.Reconciliation.LowThresholdPct = 5
		cfg.Reconciliation.MediumThresholdPct = 2
		assert.Error(t, cfg.validate())
	})

	t.Run("zero worker pool", func(t *testing.T) {
		cfg := valid(t)
		cfg.WorkerPool.Size = 0
		assert.Error(t, cfg.validate())
	})
}
