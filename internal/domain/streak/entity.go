// Package streak tracks per-user consecutive-day activity and daily goals.
// A streak advances at most once per UTC day and resets after any gap; it
// must be advanced before streak badges are evaluated so a rule sees the
// day's activity already counted.
package streak

import (
	"errors"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// Domain errors for the streak package.
var (
	ErrInvalidUserID = errors.New("streak: invalid user ID")
	ErrNotFound      = errors.New("streak: not found")
)

// UserStreak is the per-user consecutive-day counter. Days are UTC days;
// the window between two events does not matter, only their calendar days.
type UserStreak struct {
	UserID event.UserID

	// Current is the length of the active run, in days. Zero means no
	// activity recorded yet or the run is stale.
	Current int

	// Longest is the best run ever achieved, never decreasing.
	Longest int

	// LastActiveDay is midnight UTC of the most recent day with activity.
	// Zero when Current is zero.
	LastActiveDay time.Time

	UpdatedAt time.Time
}

// NewUserStreak returns an empty streak for the user.
func NewUserStreak(userID event.UserID) *UserStreak {
	return &UserStreak{UserID: userID}
}

// Advance applies one activity occurrence to the streak and reports
// whether the stored state changed. Rules:
//
//   - same UTC day as LastActiveDay: no change
//   - the UTC day immediately after LastActiveDay: run grows by one
//   - anything else (gap, or first ever event): run restarts at one
//
// An occurrence on a day before LastActiveDay is a late replay and is
// ignored; the streak only moves forward.
func (s *UserStreak) Advance(occurredAt time.Time) bool {
	day := timeutil.StartOfDay(occurredAt)

	if s.Current > 0 {
		if day.Before(s.LastActiveDay) || day.Equal(s.LastActiveDay) {
			return false
		}
		if timeutil.IsNextDay(s.LastActiveDay, day) {
			s.Current++
		} else {
			s.Current = 1
		}
	} else {
		s.Current = 1
	}

	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastActiveDay = day
	s.UpdatedAt = time.Now().UTC()
	return true
}

// EffectiveCurrent returns the run length as observed at now: a streak
// whose last active day is neither today nor yesterday has already been
// broken even though no event has arrived to reset it.
func (s *UserStreak) EffectiveCurrent(now time.Time) int {
	if s.Current == 0 {
		return 0
	}
	if timeutil.IsSameDay(s.LastActiveDay, now) || timeutil.IsNextDay(s.LastActiveDay, now) {
		return s.Current
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY GOALS
// ══════════════════════════════════════════════════════════════════════════════

// GoalType enumerates the daily goal kinds tracked per user per day.
type GoalType string

const (
	GoalCompleteLesson GoalType = "complete_lesson"
	GoalPassTest       GoalType = "pass_test"
	GoalEngage         GoalType = "engage"
)

// IsValid checks whether the goal type is known.
func (g GoalType) IsValid() bool {
	switch g {
	case GoalCompleteLesson, GoalPassTest, GoalEngage:
		return true
	}
	return false
}

// String returns the string representation of the goal type.
func (g GoalType) String() string {
	return string(g)
}

// GoalForEvent maps an event type to the daily goal it fulfills, if any.
func GoalForEvent(t event.Type) (GoalType, bool) {
	switch t {
	case event.TypeLessonComplete:
		return GoalCompleteLesson, true
	case event.TypeTestAttempt, event.TypeLiveCodingAttempt, event.TypeBugfixAttempt:
		return GoalPassTest, true
	case event.TypePostLike, event.TypePostComment, event.TypeFollow:
		return GoalEngage, true
	}
	return "", false
}

// DailyGoal is one (user, UTC day, goal type) cell. Completed flips from
// false to true at most once; repeat activity on the same day is a no-op.
type DailyGoal struct {
	UserID      event.UserID
	Day         time.Time
	Type        GoalType
	Completed   bool
	CompletedAt time.Time
}
