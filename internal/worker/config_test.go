package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dustguard/dustguard/internal/worker"
)

func TestDefaultJobConfig(t *testing.T) {
	cfg := worker.DefaultJobConfig()

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, worker.DefaultSchedule, cfg.Schedule)
	assert.Equal(t, 50, cfg.MaxErrors)
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("WORKER_CONCURRENCY", "8")
		t.Setenv("WORKER_USER_TIMEOUT", "5s")
		t.Setenv("DAILY_ASSESSMENT_CRON", "0 30 6 * * *")

		cfg := worker.ConfigFromEnv()

		assert.Equal(t, 8, cfg.Concurrency)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, "0 30 6 * * *", cfg.Schedule)
	})

	t.Run("ignores malformed values", func(t *testing.T) {
		t.Setenv("WORKER_CONCURRENCY", "-2")
		t.Setenv("WORKER_USER_TIMEOUT", "soon")
		t.Setenv("DAILY_ASSESSMENT_CRON", "")

		assert.Equal(t, worker.DefaultJobConfig(), worker.ConfigFromEnv())
	})
}
