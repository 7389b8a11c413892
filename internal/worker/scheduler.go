package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner runs the daily job for a date.
type Runner interface {
	Run(ctx context.Context, date string) (*RunResult, error)
}

// Scheduler triggers the daily assessment on a cron schedule.
// Overlapping triggers are skipped while a run is in progress.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  zerolog.Logger
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler that runs runner on schedule, a cron
// expression with a leading seconds field.
func NewScheduler(schedule string, runner Runner, logger zerolog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	id, err := s.cron.AddFunc(schedule, s.Trigger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("add cron schedule %q: %w", schedule, err)
	}
	s.entryID = id

	return s, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Time("next_run", s.cron.Entry(s.entryID).Next).Msg("scheduler started")
}

// Stop stops scheduling, cancels a run in progress and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	s.cancel()

	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timeout")
		return ctx.Err()
	}
}

// Trigger runs the job for today unless a run is already in progress.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("previous daily assessment still running, skipping trigger")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result, err := s.runner.Run(s.ctx, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled daily assessment failed")
		return
	}
	s.logger.Info().
		Str("date", result.Date).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("scheduled daily assessment finished")
}
