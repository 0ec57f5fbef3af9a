// Package leaderboard contains the ranking model of the achievement
// engine. Rankings are periodic snapshots computed from the activity log;
// they are derived data and can always be rebuilt.
package leaderboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// Domain errors for the leaderboard package.
var (
	ErrInvalidPeriod  = errors.New("leaderboard: unknown period")
	ErrInvalidWeights = errors.New("leaderboard: weights must be non-negative and not all zero")
	ErrNotFound       = errors.New("leaderboard: not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Period is the ranking cadence.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// AllPeriods lists every ranking period.
func AllPeriods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}
}

// IsValid checks whether the period is known.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// String returns the string representation of the period.
func (p Period) String() string {
	return string(p)
}

// Window returns the half-open UTC window of the period containing t.
func (p Period) Window(t time.Time) (event.Window, error) {
	switch p {
	case PeriodDaily:
		start, end := timeutil.DayWindow(t)
		return event.Window{Start: start, End: end}, nil
	case PeriodWeekly:
		start, end := timeutil.WeekWindow(t)
		return event.Window{Start: start, End: end}, nil
	case PeriodMonthly:
		start, end := timeutil.MonthWindow(t)
		return event.Window{Start: start, End: end}, nil
	}
	return event.Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
}

// Label returns the canonical period label for the period containing t:
// YYYY-MM-DD for daily, YYYY-Www (ISO week) for weekly, YYYY-MM for
// monthly.
func (p Period) Label(t time.Time) (string, error) {
	switch p {
	case PeriodDaily:
		return timeutil.DayLabel(t), nil
	case PeriodWeekly:
		return timeutil.WeekLabel(t), nil
	case PeriodMonthly:
		return timeutil.MonthLabel(t), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
}

// Rank is a 1-based position. Ranks are dense and never shared: ties are
// broken deterministically so two runs over the same data produce the
// same ordering.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// String returns the string representation of the rank.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ScoreWeights blends the per-user aggregates into one composite score.
// Weights come from configuration and are fixed for the lifetime of a
// snapshot run.
type ScoreWeights struct {
	EventCount   float64
	AverageScore float64
	HighestScore float64
}

// DefaultScoreWeights mirrors the configuration defaults.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		EventCount:   1.0,
		AverageScore: 2.0,
		HighestScore: 0.5,
	}
}

// Validate checks the weights.
func (w ScoreWeights) Validate() error {
	if w.EventCount < 0 || w.AverageScore < 0 || w.HighestScore < 0 {
		return ErrInvalidWeights
	}
	if w.EventCount == 0 && w.AverageScore == 0 && w.HighestScore == 0 {
		return ErrInvalidWeights
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// UserStats is the raw per-user aggregate for one period window, the
// input to ranking.
type UserStats struct {
	UserID       event.UserID
	EventCount   int64
	AverageScore float64
	HighestScore float64

	// LastEventAt is the occurrence time of the user's latest event in
	// the window, used as the first tie-breaker: earlier achievement of
	// the same score wins.
	LastEventAt time.Time
}

// CompositeScore blends the stats with the given weights.
func (s UserStats) CompositeScore(w ScoreWeights) float64 {
	return w.EventCount*float64(s.EventCount) +
		w.AverageScore*s.AverageScore +
		w.HighestScore*s.HighestScore
}

// Entry is one row of a computed ranking snapshot.
type Entry struct {
	UserID      event.UserID
	Period      Period
	PeriodLabel string
	Rank        Rank
	Score       float64

	EventCount   int64
	AverageScore float64
	HighestScore float64
	LastEventAt  time.Time

	ComputedAt time.Time
}

// Snapshot is the complete ranking for one (period, label) pair. Replacing
// a snapshot is atomic: readers see either the old or the new ranking,
// never a mix.
type Snapshot struct {
	Period      Period
	PeriodLabel string
	Entries     []*Entry
	ComputedAt  time.Time
}
