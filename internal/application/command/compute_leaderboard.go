package command

import (
	"context"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/internal/domain/shared"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE LEADERBOARD COMMAND
// Recomputes one (period, label) ranking from the activity log and swaps
// it in atomically. Safe to re-run: the computation is a pure function of
// the log, so repeating it converges on the same snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache is the hot-path cache the handler publishes fresh
// snapshots to. Implemented by the Redis leaderboard cache.
type SnapshotCache interface {
	Publish(ctx context.Context, s *leaderboard.Snapshot) error
}

// NopSnapshotCache discards published snapshots.
type NopSnapshotCache struct{}

// Publish implements SnapshotCache.
func (NopSnapshotCache) Publish(context.Context, *leaderboard.Snapshot) error { return nil }

// ComputeLeaderboardCommand asks for a recomputation of one period.
type ComputeLeaderboardCommand struct {
	// Period is the ranking cadence to recompute.
	Period leaderboard.Period

	// At anchors the period window: the snapshot covers the period
	// containing this instant (defaults to now).
	At time.Time
}

// Validate validates the command.
func (c ComputeLeaderboardCommand) Validate() error {
	if !c.Period.IsValid() {
		return leaderboard.ErrInvalidPeriod
	}
	return nil
}

// ComputeLeaderboardResult contains the outcome of one recomputation.
type ComputeLeaderboardResult struct {
	Period      leaderboard.Period
	PeriodLabel string
	Entries     int
	ComputedAt  time.Time
}

// ComputeLeaderboardHandler handles the ComputeLeaderboardCommand.
type ComputeLeaderboardHandler struct {
	stats     leaderboard.StatsSource
	snapshots leaderboard.Repository
	cache     SnapshotCache
	weights   leaderboard.ScoreWeights
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewComputeLeaderboardHandler creates a new ComputeLeaderboardHandler.
func NewComputeLeaderboardHandler(
	stats leaderboard.StatsSource,
	snapshots leaderboard.Repository,
	cache SnapshotCache,
	weights leaderboard.ScoreWeights,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ComputeLeaderboardHandler {
	if cache == nil {
		cache = NopSnapshotCache{}
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}

	return &ComputeLeaderboardHandler{
		stats:     stats,
		snapshots: snapshots,
		cache:     cache,
		weights:   weights,
		publisher: publisher,
		log:       log.With(logger.Component("compute_leaderboard")),
	}
}

// Handle executes the compute leaderboard command.
func (h *ComputeLeaderboardHandler) Handle(ctx context.Context, cmd ComputeLeaderboardCommand) (*ComputeLeaderboardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("compute_leaderboard: validation failed: %w", err)
	}

	at := cmd.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	window, err := cmd.Period.Window(at)
	if err != nil {
		return nil, fmt.Errorf("compute_leaderboard: %w", err)
	}
	label, err := cmd.Period.Label(at)
	if err != nil {
		return nil, fmt.Errorf("compute_leaderboard: %w", err)
	}

	started := time.Now()

	stats, err := h.stats.CollectStats(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("compute_leaderboard: failed to collect stats: %w", err)
	}

	snapshot, err := leaderboard.BuildSnapshot(cmd.Period, label, stats, h.weights, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("compute_leaderboard: failed to build snapshot: %w", err)
	}

	if err := h.snapshots.Replace(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("compute_leaderboard: failed to replace snapshot: %w", err)
	}

	// The database swap is the source of truth; a cache publish failure
	// only costs read latency until the next run.
	if err := h.cache.Publish(ctx, snapshot); err != nil {
		h.log.Warn("failed to publish snapshot to cache",
			logger.Period(cmd.Period.String()),
			logger.PeriodDate(label),
			logger.Err(err),
		)
	}

	h.log.Info("leaderboard computed",
		logger.Period(cmd.Period.String()),
		logger.PeriodDate(label),
		logger.Int("entries", len(snapshot.Entries)),
		logger.Latency(time.Since(started)),
	)

	if err := h.publisher.Publish(shared.LeaderboardComputedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventLeaderboardComputed, label),
		Period:      cmd.Period.String(),
		PeriodLabel: label,
		Entries:     len(snapshot.Entries),
	}); err != nil {
		h.log.Warn("failed to publish leaderboard event", logger.Err(err))
	}

	return &ComputeLeaderboardResult{
		Period:      cmd.Period,
		PeriodLabel: label,
		Entries:     len(snapshot.Entries),
		ComputedAt:  snapshot.ComputedAt,
	}, nil
}
