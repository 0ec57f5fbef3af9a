package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY PROGRESS QUERY
// One user's day at a glance: streak state, daily goal cells and earned
// badges. Backs profile screens and daily digests.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyProgressQuery asks for one user's daily progress.
type GetDailyProgressQuery struct {
	UserID event.UserID

	// Day selects the UTC day to report (defaults to today).
	Day time.Time
}

// Validate validates the query.
func (q GetDailyProgressQuery) Validate() error {
	if !q.UserID.IsValid() {
		return event.ErrInvalidUserID
	}
	return nil
}

// GetDailyProgressResult contains the daily progress report.
type GetDailyProgressResult struct {
	UserID event.UserID
	Day    time.Time

	// StreakCurrent is the effective streak as of the requested day.
	StreakCurrent int
	StreakLongest int

	// DaysActiveLastWeek counts the distinct active days in the rolling
	// seven days ending on the requested day.
	DaysActiveLastWeek int64

	// Goals holds one cell per goal type; types with no activity on the
	// day appear as incomplete.
	Goals []*streak.DailyGoal

	// EarnedBadges lists the user's awards, oldest first.
	EarnedBadges []*badge.UserBadge
}

// GetDailyProgressHandler handles the GetDailyProgressQuery.
type GetDailyProgressHandler struct {
	streaks streak.Repository
	goals   streak.GoalRepository
	awards  badge.AwardRepository
	events  event.AggregateReader
	log     *logger.Logger
}

// NewGetDailyProgressHandler creates a new GetDailyProgressHandler.
func NewGetDailyProgressHandler(
	streaks streak.Repository,
	goals streak.GoalRepository,
	awards badge.AwardRepository,
	events event.AggregateReader,
	log *logger.Logger,
) *GetDailyProgressHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetDailyProgressHandler{
		streaks: streaks,
		goals:   goals,
		awards:  awards,
		events:  events,
		log:     log.With(logger.Component("get_daily_progress")),
	}
}

// Handle executes the get daily progress query.
func (h *GetDailyProgressHandler) Handle(ctx context.Context, q GetDailyProgressQuery) (*GetDailyProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_daily_progress: validation failed: %w", err)
	}

	day := q.Day
	if day.IsZero() {
		day = time.Now().UTC()
	}
	day = timeutil.StartOfDay(day)

	result := &GetDailyProgressResult{UserID: q.UserID, Day: day}

	st, err := h.streaks.Get(ctx, q.UserID)
	if err != nil && !errors.Is(err, streak.ErrNotFound) {
		return nil, fmt.Errorf("get_daily_progress: failed to load streak: %w", err)
	}
	if st != nil {
		result.StreakCurrent = st.EffectiveCurrent(day)
		result.StreakLongest = st.Longest
	}

	weekStart, weekEnd := timeutil.RollingWindow(day, 7)
	days, err := h.events.DistinctDaysActive(ctx, q.UserID, event.Window{Start: weekStart, End: weekEnd})
	if err != nil {
		return nil, fmt.Errorf("get_daily_progress: failed to count active days: %w", err)
	}
	result.DaysActiveLastWeek = days

	stored, err := h.goals.ListForDay(ctx, q.UserID, day)
	if err != nil {
		return nil, fmt.Errorf("get_daily_progress: failed to load goals: %w", err)
	}
	result.Goals = fillGoalCells(q.UserID, day, stored)

	awards, err := h.awards.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_daily_progress: failed to load awards: %w", err)
	}
	result.EarnedBadges = awards

	return result, nil
}

// fillGoalCells pads the stored cells with incomplete placeholders so the
// caller always sees every goal type.
func fillGoalCells(userID event.UserID, day time.Time, stored []*streak.DailyGoal) []*streak.DailyGoal {
	byType := make(map[streak.GoalType]*streak.DailyGoal, len(stored))
	for _, g := range stored {
		byType[g.Type] = g
	}

	all := []streak.GoalType{streak.GoalCompleteLesson, streak.GoalPassTest, streak.GoalEngage}
	out := make([]*streak.DailyGoal, 0, len(all))
	for _, t := range all {
		if g, ok := byType[t]; ok {
			out = append(out, g)
			continue
		}
		out = append(out, &streak.DailyGoal{UserID: userID, Day: day, Type: t})
	}
	return out
}
