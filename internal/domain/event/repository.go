package event

import (
	"context"
	"time"
)

// Window is a half-open [Start, End) time range in UTC. The zero value
// means "all time": a zero Start imposes no lower bound and a zero End no
// upper bound.
type Window struct {
	Start time.Time
	End   time.Time
}

// AllTime is the unbounded window.
func AllTime() Window {
	return Window{}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// IsAllTime reports whether the window imposes no bounds.
func (w Window) IsAllTime() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Repository persists activity events.
type Repository interface {
	// Insert appends the event to the log. When an event with the same
	// (UserID, DedupKey) already exists it returns the stored event and
	// duplicate=true without writing anything.
	Insert(ctx context.Context, ev *ActivityEvent) (stored *ActivityEvent, duplicate bool, err error)

	// GetByID returns the event with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*ActivityEvent, error)

	// ListByUser returns the user's events of the given types inside the
	// window, ordered by occurrence time ascending. Empty types means all.
	ListByUser(ctx context.Context, userID UserID, types []Type, w Window) ([]*ActivityEvent, error)
}

// AggregateReader answers windowed questions over the activity log without
// materializing the events themselves. All methods treat the window as
// half-open [Start, End).
type AggregateReader interface {
	// CountByType returns how many events of the given type the user has
	// inside the window.
	CountByType(ctx context.Context, userID UserID, typ Type, w Window) (int64, error)

	// SumCountByTypes returns the total number of the user's events whose
	// type is in types, inside the window.
	SumCountByTypes(ctx context.Context, userID UserID, types []Type, w Window) (int64, error)

	// AverageScore returns the mean score over the user's scored events of
	// the given type inside the window. ok is false when there are no
	// scored events in the window.
	AverageScore(ctx context.Context, userID UserID, typ Type, w Window) (avg float64, ok bool, err error)

	// HighestScore returns the maximum score over the user's scored events
	// of the given type inside the window. ok is false when there are no
	// scored events in the window.
	HighestScore(ctx context.Context, userID UserID, typ Type, w Window) (max float64, ok bool, err error)

	// DistinctDaysActive returns how many distinct UTC days inside the
	// window hold at least one event of the user, any type.
	DistinctDaysActive(ctx context.Context, userID UserID, w Window) (int64, error)

	// LastEventAt returns the occurrence time of the user's most recent
	// event inside the window, considering all types. ok is false when the
	// user has no events in the window.
	LastEventAt(ctx context.Context, userID UserID, w Window) (at time.Time, ok bool, err error)

	// ActiveUsers returns the distinct user IDs with at least one event
	// inside the window.
	ActiveUsers(ctx context.Context, w Window) ([]UserID, error)
}
