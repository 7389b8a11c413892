// Package worker runs DustGuard's background jobs: the daily assessment of
// every profiled user, driven by cron or by Pub/Sub job messages.
package worker

import (
	"os"
	"strconv"
	"time"
)

// JobConfig holds configuration for the assessment job.
type JobConfig struct {
	// Concurrency is the number of users assessed in parallel.
	// Default: 4
	Concurrency int

	// Timeout bounds the assessment of a single user.
	// Default: 30 seconds
	Timeout time.Duration

	// Schedule is the cron expression (with seconds) for the daily run.
	// Default: 07:00:00 every day
	Schedule string

	// MaxErrors caps how many per-user errors a RunResult keeps.
	// Default: 50
	MaxErrors int
}

// DefaultSchedule runs the daily assessment at 07:00.
const DefaultSchedule = "0 0 7 * * *"

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Concurrency: 4,
		Timeout:     30 * time.Second,
		Schedule:    DefaultSchedule,
		MaxErrors:   50,
	}
}

// ConfigFromEnv reads the job configuration from the environment, falling
// back to the defaults for unset or malformed values.
func ConfigFromEnv() JobConfig {
	cfg := DefaultJobConfig()

	if n, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && n > 0 {
		cfg.Concurrency = n
	}
	if d, err := time.ParseDuration(os.Getenv("WORKER_USER_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if s := os.Getenv("DAILY_ASSESSMENT_CRON"); s != "" {
		cfg.Schedule = s
	}

	return cfg
}

func (c JobConfig) withDefaults() JobConfig {
	def := DefaultJobConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Schedule == "" {
		c.Schedule = def.Schedule
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = def.MaxErrors
	}
	return c
}
