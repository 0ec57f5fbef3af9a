package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence/memory"
)

// capturingCache remembers the last published snapshot.
type capturingCache struct {
	published *leaderboard.Snapshot
	fail      bool
}

func (c *capturingCache) Publish(_ context.Context, s *leaderboard.Snapshot) error {
	if c.fail {
		return errors.New("redis: connection refused")
	}
	c.published = s
	return nil
}

var computeAt = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func seedActivity(t *testing.T, events *memory.EventStore) {
	t.Helper()

	insert := func(id string, userID event.UserID, typ event.Type, payload event.Payload, at time.Time) {
		ev, err := event.NewActivityEvent(id, userID, typ, payload, at)
		require.NoError(t, err)
		_, _, err = events.Insert(context.Background(), ev)
		require.NoError(t, err)
	}

	// user-1: two scored attempts today
	insert("e1", "user-1", event.TypeTestAttempt, event.Payload{"attempt_id": "a1", "score": 90.0}, computeAt)
	insert("e2", "user-1", event.TypeTestAttempt, event.Payload{"attempt_id": "a2", "score": 70.0}, computeAt.Add(time.Hour))
	// user-2: one like today
	insert("e3", "user-2", event.TypePostLike, event.Payload{"target_id": "p1"}, computeAt)
	// user-3: active only yesterday
	insert("e4", "user-3", event.TypePostLike, event.Payload{"target_id": "p2"}, computeAt.AddDate(0, 0, -1))
}

func TestComputeLeaderboardDaily(t *testing.T) {
	events := memory.NewEventStore()
	snapshots := memory.NewLeaderboardStore()
	cache := &capturingCache{}
	seedActivity(t, events)

	h := NewComputeLeaderboardHandler(events, snapshots, cache, leaderboard.DefaultScoreWeights(), nil, nil)

	res, err := h.Handle(context.Background(), ComputeLeaderboardCommand{
		Period: leaderboard.PeriodDaily,
		At:     computeAt,
	})

	require.NoError(t, err)
	assert.Equal(t, "2024-03-06", res.PeriodLabel)
	assert.Equal(t, 2, res.Entries) // user-3 was active yesterday, not today

	snap, err := snapshots.GetSnapshot(context.Background(), leaderboard.PeriodDaily, "2024-03-06")
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)

	// user-1: 2 events, avg 80, highest 90 -> 2 + 160 + 45 = 207
	top := snap.Entries[0]
	assert.Equal(t, event.UserID("user-1"), top.UserID)
	assert.Equal(t, leaderboard.Rank(1), top.Rank)
	assert.InDelta(t, 207.0, top.Score, 0.001)

	assert.Equal(t, event.UserID("user-2"), snap.Entries[1].UserID)
	assert.Equal(t, leaderboard.Rank(2), snap.Entries[1].Rank)

	// Fresh snapshot went to the cache too.
	require.NotNil(t, cache.published)
	assert.Equal(t, snap.PeriodLabel, cache.published.PeriodLabel)
}

func TestComputeLeaderboardWeeklyIncludesWholeWeek(t *testing.T) {
	events := memory.NewEventStore()
	snapshots := memory.NewLeaderboardStore()
	seedActivity(t, events)

	h := NewComputeLeaderboardHandler(events, snapshots, nil, leaderboard.DefaultScoreWeights(), nil, nil)

	res, err := h.Handle(context.Background(), ComputeLeaderboardCommand{
		Period: leaderboard.PeriodWeekly,
		At:     computeAt,
	})

	require.NoError(t, err)
	assert.Equal(t, "2024-W10", res.PeriodLabel)
	assert.Equal(t, 3, res.Entries) // yesterday falls in the same ISO week
}

func TestComputeLeaderboardIsIdempotent(t *testing.T) {
	events := memory.NewEventStore()
	snapshots := memory.NewLeaderboardStore()
	seedActivity(t, events)

	h := NewComputeLeaderboardHandler(events, snapshots, nil, leaderboard.DefaultScoreWeights(), nil, nil)
	cmd := ComputeLeaderboardCommand{Period: leaderboard.PeriodDaily, At: computeAt}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.Entries, second.Entries)

	snap, err := snapshots.GetSnapshot(context.Background(), leaderboard.PeriodDaily, first.PeriodLabel)
	require.NoError(t, err)
	for i, e := range snap.Entries {
		assert.Equal(t, leaderboard.Rank(i+1), e.Rank)
	}
}

func TestComputeLeaderboardCacheFailureIsNotFatal(t *testing.T) {
	events := memory.NewEventStore()
	snapshots := memory.NewLeaderboardStore()
	seedActivity(t, events)

	h := NewComputeLeaderboardHandler(events, snapshots, &capturingCache{fail: true}, leaderboard.DefaultScoreWeights(), nil, nil)

	res, err := h.Handle(context.Background(), ComputeLeaderboardCommand{
		Period: leaderboard.PeriodDaily,
		At:     computeAt,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Entries)

	// The database snapshot still landed.
	_, err = snapshots.GetSnapshot(context.Background(), leaderboard.PeriodDaily, res.PeriodLabel)
	assert.NoError(t, err)
}

func TestComputeLeaderboardEmptyWindow(t *testing.T) {
	h := NewComputeLeaderboardHandler(memory.NewEventStore(), memory.NewLeaderboardStore(), nil, leaderboard.DefaultScoreWeights(), nil, nil)

	res, err := h.Handle(context.Background(), ComputeLeaderboardCommand{
		Period: leaderboard.PeriodMonthly,
		At:     computeAt,
	})

	require.NoError(t, err)
	assert.Zero(t, res.Entries)
}

func TestComputeLeaderboardValidation(t *testing.T) {
	h := NewComputeLeaderboardHandler(memory.NewEventStore(), memory.NewLeaderboardStore(), nil, leaderboard.DefaultScoreWeights(), nil, nil)

	_, err := h.Handle(context.Background(), ComputeLeaderboardCommand{Period: "hourly"})
	assert.ErrorIs(t, err, leaderboard.ErrInvalidPeriod)
}
