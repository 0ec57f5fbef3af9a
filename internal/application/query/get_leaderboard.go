package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD QUERIES
// Reads go to the hot cache first and fall back to the database. A pair
// with no computed snapshot yet reads as empty, not as an error.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotReader is the cached snapshot source. Implemented by the Redis
// leaderboard cache; nil disables the cache path.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, period leaderboard.Period, label string) (*leaderboard.Snapshot, error)
}

// GetLeaderboardQuery asks for the top of one period's ranking.
type GetLeaderboardQuery struct {
	// Period is the ranking cadence.
	Period leaderboard.Period

	// At anchors the period: the query reads the snapshot of the period
	// containing this instant (defaults to now).
	At time.Time

	// Limit caps the number of returned entries (defaults to 10).
	Limit int
}

// Validate validates the query.
func (q GetLeaderboardQuery) Validate() error {
	if !q.Period.IsValid() {
		return leaderboard.ErrInvalidPeriod
	}
	return nil
}

// GetLeaderboardResult contains the requested ranking slice.
type GetLeaderboardResult struct {
	Period      leaderboard.Period
	PeriodLabel string
	Entries     []*leaderboard.Entry
	ComputedAt  time.Time
}

// GetLeaderboardHandler handles the GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	snapshots leaderboard.Repository
	cache     SnapshotReader
	log       *logger.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(
	snapshots leaderboard.Repository,
	cache SnapshotReader,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetLeaderboardHandler{
		snapshots: snapshots,
		cache:     cache,
		log:       log.With(logger.Component("get_leaderboard")),
	}
}

// Handle executes the get leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: validation failed: %w", err)
	}

	at := q.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	label, err := q.Period.Label(at)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{Period: q.Period, PeriodLabel: label}

	if snap := h.fromCache(ctx, q.Period, label); snap != nil {
		result.Entries = snap.Top(limit)
		result.ComputedAt = snap.ComputedAt
		return result, nil
	}

	entries, err := h.snapshots.Top(ctx, q.Period, label, limit)
	if errors.Is(err, leaderboard.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result.Entries = entries
	if len(entries) > 0 {
		result.ComputedAt = entries[0].ComputedAt
	}
	return result, nil
}

func (h *GetLeaderboardHandler) fromCache(ctx context.Context, period leaderboard.Period, label string) *leaderboard.Snapshot {
	if h.cache == nil {
		return nil
	}
	snap, err := h.cache.GetSnapshot(ctx, period, label)
	if err != nil {
		return nil
	}
	return snap
}

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RANK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetUserRankQuery asks for one user's position in one period's ranking.
type GetUserRankQuery struct {
	UserID event.UserID
	Period leaderboard.Period

	// At anchors the period (defaults to now).
	At time.Time
}

// Validate validates the query.
func (q GetUserRankQuery) Validate() error {
	if !q.UserID.IsValid() {
		return event.ErrInvalidUserID
	}
	if !q.Period.IsValid() {
		return leaderboard.ErrInvalidPeriod
	}
	return nil
}

// GetUserRankResult contains the user's ranking entry.
type GetUserRankResult struct {
	Period      leaderboard.Period
	PeriodLabel string

	// Ranked is false when the user has no entry in the snapshot (no
	// activity in the period, or no snapshot computed yet).
	Ranked bool
	Entry  *leaderboard.Entry
}

// GetUserRankHandler handles the GetUserRankQuery.
type GetUserRankHandler struct {
	snapshots leaderboard.Repository
	cache     SnapshotReader
	log       *logger.Logger
}

// NewGetUserRankHandler creates a new GetUserRankHandler.
func NewGetUserRankHandler(
	snapshots leaderboard.Repository,
	cache SnapshotReader,
	log *logger.Logger,
) *GetUserRankHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetUserRankHandler{
		snapshots: snapshots,
		cache:     cache,
		log:       log.With(logger.Component("get_user_rank")),
	}
}

// Handle executes the get user rank query.
func (h *GetUserRankHandler) Handle(ctx context.Context, q GetUserRankQuery) (*GetUserRankResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_user_rank: validation failed: %w", err)
	}

	at := q.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	label, err := q.Period.Label(at)
	if err != nil {
		return nil, fmt.Errorf("get_user_rank: %w", err)
	}

	result := &GetUserRankResult{Period: q.Period, PeriodLabel: label}

	if h.cache != nil {
		if snap, err := h.cache.GetSnapshot(ctx, q.Period, label); err == nil {
			if e := snap.Find(q.UserID.String()); e != nil {
				result.Ranked = true
				result.Entry = e
			}
			return result, nil
		}
	}

	entry, err := h.snapshots.GetEntry(ctx, q.Period, label, q.UserID)
	if errors.Is(err, leaderboard.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_user_rank: %w", err)
	}

	result.Ranked = true
	result.Entry = entry
	return result, nil
}
