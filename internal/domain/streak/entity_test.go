package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC)
}

func TestAdvanceFirstEvent(t *testing.T) {
	s := NewUserStreak("user-1")

	changed := s.Advance(day(1))

	assert.True(t, changed)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 1, s.Longest)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), s.LastActiveDay)
}

func TestAdvanceSameDayIsNoOp(t *testing.T) {
	s := NewUserStreak("user-1")
	s.Advance(day(1))

	changed := s.Advance(day(1).Add(8 * time.Hour))

	assert.False(t, changed)
	assert.Equal(t, 1, s.Current)
}

func TestAdvanceConsecutiveDays(t *testing.T) {
	s := NewUserStreak("user-1")
	for d := 1; d <= 5; d++ {
		s.Advance(day(d))
	}

	assert.Equal(t, 5, s.Current)
	assert.Equal(t, 5, s.Longest)
}

func TestAdvanceGapResets(t *testing.T) {
	s := NewUserStreak("user-1")
	s.Advance(day(1))
	s.Advance(day(2))
	s.Advance(day(3))

	changed := s.Advance(day(7))

	assert.True(t, changed)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 3, s.Longest) // best run survives the reset
}

func TestAdvanceIgnoresLateReplay(t *testing.T) {
	s := NewUserStreak("user-1")
	s.Advance(day(5))

	changed := s.Advance(day(3))

	assert.False(t, changed)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), s.LastActiveDay)
}

func TestAdvanceMidnightBoundary(t *testing.T) {
	s := NewUserStreak("user-1")
	s.Advance(time.Date(2024, 3, 4, 23, 59, 59, 0, time.UTC))
	s.Advance(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	// One second apart, but two distinct UTC days.
	assert.Equal(t, 2, s.Current)
}

func TestEffectiveCurrent(t *testing.T) {
	s := NewUserStreak("user-1")
	s.Advance(day(1))
	s.Advance(day(2))
	s.Advance(day(3))

	// Observed on the last active day or the day after: still alive.
	assert.Equal(t, 3, s.EffectiveCurrent(day(3).Add(5*time.Hour)))
	assert.Equal(t, 3, s.EffectiveCurrent(day(4)))

	// Two days later the run is already broken.
	assert.Equal(t, 0, s.EffectiveCurrent(day(5)))

	assert.Equal(t, 0, NewUserStreak("user-2").EffectiveCurrent(day(1)))
}

func TestGoalForEvent(t *testing.T) {
	cases := []struct {
		typ  event.Type
		goal GoalType
		ok   bool
	}{
		{event.TypeLessonComplete, GoalCompleteLesson, true},
		{event.TypeTestAttempt, GoalPassTest, true},
		{event.TypeLiveCodingAttempt, GoalPassTest, true},
		{event.TypeBugfixAttempt, GoalPassTest, true},
		{event.TypePostLike, GoalEngage, true},
		{event.TypePostComment, GoalEngage, true},
		{event.TypeFollow, GoalEngage, true},
		{event.TypeJobApplication, "", false},
	}
	for _, c := range cases {
		goal, ok := GoalForEvent(c.typ)
		assert.Equal(t, c.ok, ok, "type %s", c.typ)
		assert.Equal(t, c.goal, goal, "type %s", c.typ)
	}
}
