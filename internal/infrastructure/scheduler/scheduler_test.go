package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingJob counts executions and optionally fails.
type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestRegisterRejectsBadInput(t *testing.T) {
	s := NewScheduler(nil)

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
}

func TestStartStopLifecycle(t *testing.T) {
	s := NewScheduler(nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestRunNowExecutesAndRecords(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{name: "compute"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "compute")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	last, ok := s.LastRun("compute")
	require.True(t, ok)
	assert.Equal(t, "compute", last.JobName)
	assert.True(t, last.Success)
}

func TestRunNowPropagatesJobError(t *testing.T) {
	s := NewScheduler(nil)
	boom := errors.New("boom")
	job := &countingJob{name: "failing", err: boom}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "failing")

	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success)

	last, ok := s.LastRun("failing")
	require.True(t, ok)
	assert.False(t, last.Success)
}

func TestRunNowUnknownJob(t *testing.T) {
	s := NewScheduler(nil)

	_, err := s.RunNow(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestEnableDisable(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Hour)))

	assert.NoError(t, s.DisableJob("a"))
	assert.NoError(t, s.EnableJob("a"))
	assert.ErrorIs(t, s.DisableJob("ghost"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("ghost"), ErrJobNotFound)
}
