package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-hub/achievement-engine/internal/application/command"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence/memory"
)

// fakeLocker is an in-memory JobLocker.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	acquired int
	released int
	failWith error
}

var errFakeLockHeld = errors.New("fake: lock held")

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) AcquireLock(_ context.Context, name, holder string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return l.failWith
	}
	if _, ok := l.held[name]; ok {
		return errFakeLockHeld
	}
	l.held[name] = holder
	l.acquired++
	return nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, name, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == holder {
		delete(l.held, name)
		l.released++
	}
	return nil
}

func newComputeHandler(t *testing.T) (*command.ComputeLeaderboardHandler, *memory.LeaderboardStore) {
	t.Helper()

	events := memory.NewEventStore()
	ev, err := event.NewActivityEvent("e1", "user-1", event.TypePostLike,
		event.Payload{"target_id": "p1"}, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	_, _, err = events.Insert(context.Background(), ev)
	require.NoError(t, err)

	snapshots := memory.NewLeaderboardStore()
	h := command.NewComputeLeaderboardHandler(
		events, snapshots, nil, leaderboard.DefaultScoreWeights(), nil, nil,
	)
	return h, snapshots
}

func TestJobComputesAllPeriods(t *testing.T) {
	handler, snapshots := newComputeHandler(t)
	locker := newFakeLocker()

	job := NewComputeLeaderboardJob(handler, locker, errFakeLockHeld, nil)
	require.NoError(t, job.Run(context.Background()))

	now := time.Now().UTC()
	for _, period := range leaderboard.AllPeriods() {
		label, err := period.Label(now)
		require.NoError(t, err)
		snap, err := snapshots.GetSnapshot(context.Background(), period, label)
		require.NoError(t, err, "period %s", period)
		assert.Len(t, snap.Entries, 1)
	}

	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestJobYieldsWhenLockHeld(t *testing.T) {
	handler, snapshots := newComputeHandler(t)
	locker := newFakeLocker()
	locker.held[lockName] = "other-worker"

	job := NewComputeLeaderboardJob(handler, locker, errFakeLockHeld, nil)
	assert.NoError(t, job.Run(context.Background()))

	// Nothing was computed while another worker held the lock.
	now := time.Now().UTC()
	label, err := leaderboard.PeriodDaily.Label(now)
	require.NoError(t, err)
	_, err = snapshots.GetSnapshot(context.Background(), leaderboard.PeriodDaily, label)
	assert.ErrorIs(t, err, leaderboard.ErrNotFound)
}

func TestJobReportsLockerFailure(t *testing.T) {
	handler, _ := newComputeHandler(t)
	locker := newFakeLocker()
	locker.failWith = errors.New("redis: connection refused")

	job := NewComputeLeaderboardJob(handler, locker, errFakeLockHeld, nil)
	assert.Error(t, job.Run(context.Background()))
}

func TestJobRunsWithoutLocker(t *testing.T) {
	handler, snapshots := newComputeHandler(t)

	job := NewComputeLeaderboardJob(handler, nil, nil, nil)
	require.NoError(t, job.Run(context.Background()))

	now := time.Now().UTC()
	label, err := leaderboard.PeriodDaily.Label(now)
	require.NoError(t, err)
	_, err = snapshots.GetSnapshot(context.Background(), leaderboard.PeriodDaily, label)
	assert.NoError(t, err)
}
