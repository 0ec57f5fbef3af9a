package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository over the user_streaks table.
type StreakRepository struct {
	conn *Connection
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

// Get returns the user's streak, or streak.ErrNotFound.
func (r *StreakRepository) Get(ctx context.Context, userID event.UserID) (*streak.UserStreak, error) {
	var (
		s             streak.UserStreak
		id            string
		lastActiveDay *time.Time
	)

	err := r.conn.QueryRow(ctx, `
		SELECT user_id, current_streak, longest_streak, last_active_day, updated_at
		FROM user_streaks
		WHERE user_id = $1
	`, userID.String()).Scan(&id, &s.Current, &s.Longest, &lastActiveDay, &s.UpdatedAt)

	if IsNoRows(err) {
		return nil, streak.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	s.UserID = event.UserID(id)
	if lastActiveDay != nil {
		s.LastActiveDay = timeutil.StartOfDay(*lastActiveDay)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// Save upserts the streak state.
func (r *StreakRepository) Save(ctx context.Context, s *streak.UserStreak) error {
	var lastActiveDay *time.Time
	if !s.LastActiveDay.IsZero() {
		d := s.LastActiveDay
		lastActiveDay = &d
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO user_streaks (user_id, current_streak, longest_streak, last_active_day, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_active_day = EXCLUDED.last_active_day,
			updated_at = EXCLUDED.updated_at
	`,
		s.UserID.String(),
		s.Current,
		s.Longest,
		lastActiveDay,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements streak.GoalRepository over the daily_goals
// table. Completion is write-once: the conditional update only fires when
// the cell is still incomplete, so repeat activity on the same day is a
// no-op at the database level.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

// MarkCompleted flips the (user, day, type) cell to completed, reporting
// whether this call performed the flip.
func (r *GoalRepository) MarkCompleted(ctx context.Context, userID event.UserID, day time.Time, typ streak.GoalType, at time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO daily_goals (user_id, day, goal_type, completed, completed_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (user_id, day, goal_type) DO UPDATE SET
			completed = TRUE,
			completed_at = EXCLUDED.completed_at
		WHERE daily_goals.completed = FALSE
	`,
		userID.String(),
		timeutil.StartOfDay(day),
		typ.String(),
		at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark goal completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListForDay returns the user's goal cells for the given UTC day.
func (r *GoalRepository) ListForDay(ctx context.Context, userID event.UserID, day time.Time) ([]*streak.DailyGoal, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, day, goal_type, completed, COALESCE(completed_at, 'epoch'::timestamptz)
		FROM daily_goals
		WHERE user_id = $1 AND day = $2
		ORDER BY goal_type
	`, userID.String(), timeutil.StartOfDay(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily goals: %w", err)
	}
	defer rows.Close()

	var goals []*streak.DailyGoal
	for rows.Next() {
		var (
			g   streak.DailyGoal
			id  string
			typ string
		)
		if err := rows.Scan(&id, &g.Day, &typ, &g.Completed, &g.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily goal: %w", err)
		}
		g.UserID = event.UserID(id)
		g.Type = streak.GoalType(typ)
		g.Day = timeutil.StartOfDay(g.Day)
		goals = append(goals, &g)
	}
	return goals, rows.Err()
}
