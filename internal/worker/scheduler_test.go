package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/worker"
)

type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, date string) (*worker.RunResult, error) {
	r.calls.Add(1)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return &worker.RunResult{Date: testToday}, nil
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := worker.NewScheduler("every morning", &blockingRunner{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduler_TriggerSkipsOverlap(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	s, err := worker.NewScheduler(worker.DefaultSchedule, runner, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Trigger()
		close(done)
	}()
	<-runner.started

	// A second trigger while the first is running returns immediately.
	s.Trigger()
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.release)
	<-done

	// Once finished, the next trigger runs again.
	go s.Trigger()
	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("second run did not start")
	}
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := worker.NewScheduler(worker.DefaultSchedule, runner, zerolog.Nop())
	require.NoError(t, err)

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.Zero(t, runner.calls.Load())
}
