package streak

import (
	"context"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// Repository persists user streaks.
type Repository interface {
	// Get returns the user's streak, or ErrNotFound when the user has
	// never been active.
	Get(ctx context.Context, userID event.UserID) (*UserStreak, error)

	// Save upserts the streak state.
	Save(ctx context.Context, s *UserStreak) error
}

// GoalRepository persists daily goal completion.
type GoalRepository interface {
	// MarkCompleted flips the (user, day, type) cell to completed. It
	// reports whether this call performed the flip; a cell that was
	// already completed yields false.
	MarkCompleted(ctx context.Context, userID event.UserID, day time.Time, typ GoalType, at time.Time) (bool, error)

	// ListForDay returns the user's goal cells for the given UTC day.
	ListForDay(ctx context.Context, userID event.UserID, day time.Time) ([]*DailyGoal, error)
}
