package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/worker"
)

func TestDispatcher_DailyAssessment(t *testing.T) {
	assessor := newFakeAssessor()
	d := worker.NewDispatcher(newJob(assessor, fakeUsers{ids: []string{"u1", "u2"}}), zerolog.Nop())

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"daily_assessment","date":"2026-03-05"}`))
	require.NoError(t, err)

	date, ok := assessor.dateFor("u2")
	require.True(t, ok)
	assert.Equal(t, "2026-03-05", date)
}

func TestDispatcher_DailyAssessmentMostlyFailed(t *testing.T) {
	assessor := newFakeAssessor()
	assessor.failFor["u1"] = true
	assessor.failFor["u2"] = true
	d := worker.NewDispatcher(newJob(assessor, fakeUsers{ids: []string{"u1", "u2", "u3"}}), zerolog.Nop())

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"daily_assessment"}`))
	assert.ErrorContains(t, err, "too many assessment failures")
}

func TestDispatcher_AssessUser(t *testing.T) {
	assessor := newFakeAssessor()
	d := worker.NewDispatcher(newJob(assessor, fakeUsers{}), zerolog.Nop())

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"assess_user","user_id":"u7"}`))
	require.NoError(t, err)

	date, ok := assessor.dateFor("u7")
	require.True(t, ok)
	assert.Empty(t, date)

	err = d.Dispatch(context.Background(), []byte(`{"job_type":"assess_user"}`))
	assert.ErrorContains(t, err, "user_id is required")

	assessor.failFor["u8"] = true
	err = d.Dispatch(context.Background(), []byte(`{"job_type":"assess_user","user_id":"u8"}`))
	assert.Error(t, err)
}

func TestDispatcher_Errors(t *testing.T) {
	d := worker.NewDispatcher(newJob(newFakeAssessor(), fakeUsers{}), zerolog.Nop())

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"refresh_tiles"}`))
	assert.ErrorIs(t, err, worker.ErrUnknownJob)

	err = d.Dispatch(context.Background(), []byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, worker.ErrUnknownJob)
}
