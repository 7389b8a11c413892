package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/assessment"
	"github.com/dustguard/dustguard/internal/profile"
)

// Assessor computes and stores one user's assessment.
type Assessor interface {
	Assess(ctx context.Context, userID, date string) (*assessment.Assessment, error)
	Today() string
}

// UserLister lists the users the daily run covers.
type UserLister interface {
	ListWithLocation(ctx context.Context) ([]*profile.Profile, error)
}

// AssessmentJob assesses every profiled user with a bounded worker pool.
type AssessmentJob struct {
	config   JobConfig
	assessor Assessor
	users    UserLister
	logger   zerolog.Logger

	metrics *JobMetrics
}

// JobMetrics tracks assessment job statistics.
type JobMetrics struct {
	mu sync.RWMutex

	TotalRuns     int64
	Assessed      int64
	Failed        int64
	Alerted       int64
	LastRunAt     time.Time
	LastRunDate   string
	LastDuration  time.Duration
	TotalDuration time.Duration
}

// AssessmentJobConfig holds configuration for creating an AssessmentJob.
type AssessmentJobConfig struct {
	Config   JobConfig
	Assessor Assessor
	Users    UserLister
	Logger   zerolog.Logger
}

// NewAssessmentJob creates a new assessment job.
func NewAssessmentJob(cfg AssessmentJobConfig) *AssessmentJob {
	return &AssessmentJob{
		config:   cfg.Config.withDefaults(),
		assessor: cfg.Assessor,
		users:    cfg.Users,
		logger:   cfg.Logger,
		metrics:  &JobMetrics{},
	}
}

// RunResult contains the result of a run.
type RunResult struct {
	Date       string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Alerted    int
	Errors     []UserError
}

// UserError is a failed assessment.
type UserError struct {
	UserID string
	Error  string
}

type userResult struct {
	userID  string
	err     error
	alerted bool
}

// Run assesses every profiled user for date (today if empty). A listing
// failure is returned as an error; per-user failures are counted in the
// result.
func (j *AssessmentJob) Run(ctx context.Context, date string) (*RunResult, error) {
	if date == "" {
		date = j.assessor.Today()
	}

	startTime := time.Now()
	result := &RunResult{Date: date, StartTime: startTime}

	profiles, err := j.users.ListWithLocation(ctx)
	if err != nil {
		return nil, err
	}
	result.Total = len(profiles)

	j.logger.Info().
		Str("date", date).
		Int("users", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting daily assessment job")

	userIDs := make(chan string, len(profiles))
	results := make(chan userResult, len(profiles))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.assessWorker(ctx, date, userIDs, results)
		}()
	}

	for _, p := range profiles {
		userIDs <- p.UserID
	}
	close(userIDs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for ur := range results {
		if ur.err != nil {
			result.Failed++
			if len(result.Errors) < j.config.MaxErrors {
				result.Errors = append(result.Errors, UserError{UserID: ur.userID, Error: ur.err.Error()})
			}
			j.logger.Warn().Err(ur.err).Str("user_id", ur.userID).Msg("assessment failed")
			continue
		}
		result.Successful++
		if ur.alerted {
			result.Alerted++
		}
	}

	// Users never picked up because ctx was cancelled count as failed.
	if skipped := result.Total - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Str("date", date).
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("alerted", result.Alerted).
		Msg("daily assessment job completed")

	return result, nil
}

func (j *AssessmentJob) assessWorker(ctx context.Context, date string, userIDs <-chan string, results chan<- userResult) {
	for userID := range userIDs {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.assessOne(ctx, userID, date)
		}
	}
}

func (j *AssessmentJob) assessOne(ctx context.Context, userID, date string) userResult {
	userCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	a, err := j.assessor.Assess(userCtx, userID, date)
	if err != nil {
		return userResult{userID: userID, err: err}
	}
	return userResult{userID: userID, alerted: a.Alert != nil && a.Alert.Sent}
}

// AssessUser assesses a single user, for on-demand job messages.
func (j *AssessmentJob) AssessUser(ctx context.Context, userID, date string) (*assessment.Assessment, error) {
	userCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()
	return j.assessor.Assess(userCtx, userID, date)
}

func (j *AssessmentJob) updateMetrics(result *RunResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Assessed += int64(result.Successful)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.Alerted += int64(result.Alerted)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDate = result.Date
	j.metrics.LastDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *AssessmentJob) MetricsSnapshot() map[string]any {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return map[string]any{
		"total_runs":     j.metrics.TotalRuns,
		"assessed":       j.metrics.Assessed,
		"failed":         j.metrics.Failed,
		"alerted":        j.metrics.Alerted,
		"last_run_at":    j.metrics.LastRunAt,
		"last_run_date":  j.metrics.LastRunDate,
		"last_duration":  j.metrics.LastDuration.String(),
		"total_duration": j.metrics.TotalDuration.String(),
	}
}
