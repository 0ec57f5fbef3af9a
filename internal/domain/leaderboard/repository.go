package leaderboard

import (
	"context"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// Repository persists ranking snapshots.
type Repository interface {
	// Replace atomically swaps the stored snapshot for the snapshot's
	// (period, label) pair. Concurrent readers observe either the old or
	// the new ranking in full.
	Replace(ctx context.Context, s *Snapshot) error

	// GetSnapshot returns the stored snapshot for the pair, or
	// ErrNotFound when no ranking has been computed yet.
	GetSnapshot(ctx context.Context, period Period, label string) (*Snapshot, error)

	// GetEntry returns one user's entry in the pair, or ErrNotFound when
	// the user is not ranked.
	GetEntry(ctx context.Context, period Period, label string, userID event.UserID) (*Entry, error)

	// Top returns the first n entries of the pair ordered by rank.
	Top(ctx context.Context, period Period, label string, n int) ([]*Entry, error)
}

// StatsSource supplies the per-user aggregates the ranking job consumes.
// The postgres implementation computes them in one grouped query over the
// activity log.
type StatsSource interface {
	// CollectStats returns one UserStats per user with at least one event
	// inside the window.
	CollectStats(ctx context.Context, w event.Window) ([]UserStats, error)
}
