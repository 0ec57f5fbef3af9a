package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

var computedAt = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestBuildSnapshotRanksByScore(t *testing.T) {
	stats := []UserStats{
		{UserID: "low", EventCount: 1, LastEventAt: computedAt},
		{UserID: "high", EventCount: 10, LastEventAt: computedAt},
		{UserID: "mid", EventCount: 5, LastEventAt: computedAt},
	}

	snap, err := BuildSnapshot(PeriodDaily, "2024-03-10", stats, DefaultScoreWeights(), computedAt)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 3)

	assert.Equal(t, event.UserID("high"), snap.Entries[0].UserID)
	assert.Equal(t, event.UserID("mid"), snap.Entries[1].UserID)
	assert.Equal(t, event.UserID("low"), snap.Entries[2].UserID)

	// Ranks are dense 1..N.
	for i, e := range snap.Entries {
		assert.Equal(t, Rank(i+1), e.Rank)
	}
}

func TestBuildSnapshotTieBreaks(t *testing.T) {
	earlier := computedAt.Add(-2 * time.Hour)

	stats := []UserStats{
		{UserID: "b-late", EventCount: 5, LastEventAt: computedAt},
		{UserID: "a-late", EventCount: 5, LastEventAt: computedAt},
		{UserID: "z-early", EventCount: 5, LastEventAt: earlier},
	}

	snap, err := BuildSnapshot(PeriodDaily, "2024-03-10", stats, DefaultScoreWeights(), computedAt)
	require.NoError(t, err)

	// Same score: earlier last event first, then user ID ascending.
	assert.Equal(t, event.UserID("z-early"), snap.Entries[0].UserID)
	assert.Equal(t, event.UserID("a-late"), snap.Entries[1].UserID)
	assert.Equal(t, event.UserID("b-late"), snap.Entries[2].UserID)
}

func TestBuildSnapshotIsDeterministic(t *testing.T) {
	stats := []UserStats{
		{UserID: "u3", EventCount: 2, LastEventAt: computedAt},
		{UserID: "u1", EventCount: 2, LastEventAt: computedAt},
		{UserID: "u2", EventCount: 2, LastEventAt: computedAt},
	}

	first, err := BuildSnapshot(PeriodWeekly, "2024-W10", stats, DefaultScoreWeights(), computedAt)
	require.NoError(t, err)

	// Shuffled input produces the identical ordering.
	shuffled := []UserStats{stats[2], stats[0], stats[1]}
	second, err := BuildSnapshot(PeriodWeekly, "2024-W10", shuffled, DefaultScoreWeights(), computedAt)
	require.NoError(t, err)

	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].UserID, second.Entries[i].UserID)
		assert.Equal(t, first.Entries[i].Rank, second.Entries[i].Rank)
	}
}

func TestBuildSnapshotExcludesZeroActivity(t *testing.T) {
	stats := []UserStats{
		{UserID: "active", EventCount: 3, LastEventAt: computedAt},
		{UserID: "idle", EventCount: 0},
	}

	snap, err := BuildSnapshot(PeriodMonthly, "2024-03", stats, DefaultScoreWeights(), computedAt)
	require.NoError(t, err)

	require.Len(t, snap.Entries, 1)
	assert.Equal(t, event.UserID("active"), snap.Entries[0].UserID)
}

func TestBuildSnapshotValidation(t *testing.T) {
	_, err := BuildSnapshot("hourly", "x", nil, DefaultScoreWeights(), computedAt)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = BuildSnapshot(PeriodDaily, "x", nil, ScoreWeights{}, computedAt)
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestCompositeScore(t *testing.T) {
	s := UserStats{EventCount: 10, AverageScore: 80, HighestScore: 100}
	w := ScoreWeights{EventCount: 1.0, AverageScore: 2.0, HighestScore: 0.5}

	assert.Equal(t, 10.0+160.0+50.0, s.CompositeScore(w))
}

func TestSnapshotTopAndFind(t *testing.T) {
	stats := []UserStats{
		{UserID: "u1", EventCount: 3, LastEventAt: computedAt},
		{UserID: "u2", EventCount: 2, LastEventAt: computedAt},
		{UserID: "u3", EventCount: 1, LastEventAt: computedAt},
	}
	snap, err := BuildSnapshot(PeriodDaily, "2024-03-10", stats, DefaultScoreWeights(), computedAt)
	require.NoError(t, err)

	assert.Len(t, snap.Top(2), 2)
	assert.Len(t, snap.Top(10), 3)
	assert.Empty(t, snap.Top(0))

	require.NotNil(t, snap.Find("u2"))
	assert.Equal(t, Rank(2), snap.Find("u2").Rank)
	assert.Nil(t, snap.Find("ghost"))
}

func TestPeriodWindowAndLabel(t *testing.T) {
	at := time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC) // Wednesday

	w, err := PeriodDaily.Window(at)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), w.Start)

	w, err = PeriodWeekly.Window(at)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), w.Start)

	w, err = PeriodMonthly.Window(at)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), w.Start)

	label, err := PeriodWeekly.Label(at)
	require.NoError(t, err)
	assert.Equal(t, "2024-W10", label)

	_, err = Period("hourly").Window(at)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = Period("hourly").Label(at)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
