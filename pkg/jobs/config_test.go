package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultJobConfig(t *testing.T) {
	cfg := DefaultJobConfig()
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.ClaimTimeout)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.True(t, cfg.Enabled)
}

func TestJobConfigFromEnv(t *testing.T) {
	t.Setenv("GRC_JOB_CONCURRENCY", "5")
	t.Setenv("GRC_JOB_MAX_RETRIES", "1")
	t.Setenv("GRC_JOB_POLL_INTERVAL_SECONDS", "30")
	t.Setenv("GRC_JOB_CLAIM_TIMEOUT_MINUTES", "20")
	t.Setenv("GRC_JOB_RETENTION_DAYS", "14")
	t.Setenv("GRC_JOB_ENABLED", "false")

	cfg := JobConfigFromEnv()
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 20*time.Minute, cfg.ClaimTimeout)
	assert.Equal(t, 14, cfg.RetentionDays)
	assert.False(t, cfg.Enabled)
}

func TestJobConfigFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("GRC_JOB_CONCURRENCY", "zero")
	t.Setenv("GRC_JOB_POLL_INTERVAL_SECONDS", "-1")

	cfg := JobConfigFromEnv()
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}
