package query

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

var queryAt = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

// stubReader serves one fixed snapshot, or errors.
type stubReader struct {
	snap *leaderboard.Snapshot
	err  error
}

func (s *stubReader) GetSnapshot(context.Context, leaderboard.Period, string) (*leaderboard.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func storedSnapshot(t *testing.T, users ...string) *leaderboard.Snapshot {
	t.Helper()

	stats := make([]leaderboard.UserStats, 0, len(users))
	for i, u := range users {
		stats = append(stats, leaderboard.UserStats{
			UserID:      event.UserID(u),
			EventCount:  int64(len(users) - i), // earlier users rank higher
			LastEventAt: queryAt,
		})
	}
	snap, err := leaderboard.BuildSnapshot(
		leaderboard.PeriodDaily, "2024-03-06", stats,
		leaderboard.DefaultScoreWeights(), queryAt,
	)
	require.NoError(t, err)
	return snap
}

func TestGetLeaderboardFromStore(t *testing.T) {
	store := memory.NewLeaderboardStore()
	require.NoError(t, store.Replace(context.Background(), storedSnapshot(t, "u1", "u2", "u3")))

	h := NewGetLeaderboardHandler(store, nil, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Period: leaderboard.PeriodDaily,
		At:     queryAt,
		Limit:  2,
	})

	require.NoError(t, err)
	assert.Equal(t, "2024-03-06", res.PeriodLabel)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, leaderboard.Rank(1), res.Entries[0].Rank)
	assert.Equal(t, queryAt, res.ComputedAt)
}

func TestGetLeaderboardPrefersCache(t *testing.T) {
	store := memory.NewLeaderboardStore() // empty on purpose
	cached := storedSnapshot(t, "cached-user")

	h := NewGetLeaderboardHandler(store, &stubReader{snap: cached}, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Period: leaderboard.PeriodDaily,
		At:     queryAt,
	})

	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, event.UserID("cached-user"), res.Entries[0].UserID)
}

func TestGetLeaderboardFallsBackOnCacheMiss(t *testing.T) {
	store := memory.NewLeaderboardStore()
	require.NoError(t, store.Replace(context.Background(), storedSnapshot(t, "db-user")))

	h := NewGetLeaderboardHandler(store, &stubReader{err: errors.New("cache miss")}, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Period: leaderboard.PeriodDaily,
		At:     queryAt,
	})

	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, event.UserID("db-user"), res.Entries[0].UserID)
}

func TestGetLeaderboardNoSnapshotIsEmpty(t *testing.T) {
	h := NewGetLeaderboardHandler(memory.NewLeaderboardStore(), nil, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{
		Period: leaderboard.PeriodWeekly,
		At:     queryAt,
	})

	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, "2024-W10", res.PeriodLabel)
}

func TestGetLeaderboardValidation(t *testing.T) {
	h := NewGetLeaderboardHandler(memory.NewLeaderboardStore(), nil, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Period: "hourly"})
	assert.ErrorIs(t, err, leaderboard.ErrInvalidPeriod)
}

func TestGetUserRank(t *testing.T) {
	store := memory.NewLeaderboardStore()
	require.NoError(t, store.Replace(context.Background(), storedSnapshot(t, "u1", "u2")))

	h := NewGetUserRankHandler(store, nil, nil)

	res, err := h.Handle(context.Background(), GetUserRankQuery{
		UserID: "u2",
		Period: leaderboard.PeriodDaily,
		At:     queryAt,
	})

	require.NoError(t, err)
	assert.True(t, res.Ranked)
	require.NotNil(t, res.Entry)
	assert.Equal(t, leaderboard.Rank(2), res.Entry.Rank)
}

func TestGetUserRankUnranked(t *testing.T) {
	store := memory.NewLeaderboardStore()
	require.NoError(t, store.Replace(context.Background(), storedSnapshot(t, "u1")))

	h := NewGetUserRankHandler(store, nil, nil)

	res, err := h.Handle(context.Background(), GetUserRankQuery{
		UserID: "ghost",
		Period: leaderboard.PeriodDaily,
		At:     queryAt,
	})

	require.NoError(t, err)
	assert.False(t, res.Ranked)
	assert.Nil(t, res.Entry)
}
