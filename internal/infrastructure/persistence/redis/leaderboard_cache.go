package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ErrSnapshotNotCached is returned when the requested snapshot is not in
// the cache; callers fall back to the database.
var ErrSnapshotNotCached = errors.New("leaderboard_cache: snapshot not cached")

// cachedEntry is the JSON shape of one ranking row in the cache.
type cachedEntry struct {
	UserID       string    `json:"user_id"`
	Rank         int       `json:"rank"`
	Score        float64   `json:"score"`
	EventCount   int64     `json:"event_count"`
	AverageScore float64   `json:"average_score"`
	HighestScore float64   `json:"highest_score"`
	LastEventAt  time.Time `json:"last_event_at"`
}

// cachedSnapshot is the JSON shape of a whole snapshot in the cache.
type cachedSnapshot struct {
	Period      string        `json:"period"`
	PeriodLabel string        `json:"period_label"`
	ComputedAt  time.Time     `json:"computed_at"`
	Entries     []cachedEntry `json:"entries"`
}

// LeaderboardCache keeps the freshest snapshot of each (period, label)
// pair in Redis so rank reads rarely hit the database. The ranking job
// publishes here right after a successful Replace.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a LeaderboardCache with the default TTL.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache, ttl: TTLLeaderboard}
}

// NewLeaderboardCacheWithTTL creates a LeaderboardCache with a custom TTL.
func NewLeaderboardCacheWithTTL(cache *Cache, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

func snapshotKey(period leaderboard.Period, label string) string {
	return fmt.Sprintf("%s%s:%s", PrefixLeaderboard, period, label)
}

// Publish stores the snapshot, replacing any cached predecessor.
func (lc *LeaderboardCache) Publish(ctx context.Context, s *leaderboard.Snapshot) error {
	cs := cachedSnapshot{
		Period:      s.Period.String(),
		PeriodLabel: s.PeriodLabel,
		ComputedAt:  s.ComputedAt,
		Entries:     make([]cachedEntry, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		cs.Entries = append(cs.Entries, cachedEntry{
			UserID:       e.UserID.String(),
			Rank:         int(e.Rank),
			Score:        e.Score,
			EventCount:   e.EventCount,
			AverageScore: e.AverageScore,
			HighestScore: e.HighestScore,
			LastEventAt:  e.LastEventAt,
		})
	}
	return lc.cache.Set(ctx, snapshotKey(s.Period, s.PeriodLabel), cs, lc.ttl)
}

// GetSnapshot returns the cached snapshot, or ErrSnapshotNotCached.
func (lc *LeaderboardCache) GetSnapshot(ctx context.Context, period leaderboard.Period, label string) (*leaderboard.Snapshot, error) {
	var cs cachedSnapshot
	err := lc.cache.Get(ctx, snapshotKey(period, label), &cs)
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrSnapshotNotCached
	}
	if err != nil {
		return nil, err
	}

	s := &leaderboard.Snapshot{
		Period:      leaderboard.Period(cs.Period),
		PeriodLabel: cs.PeriodLabel,
		ComputedAt:  cs.ComputedAt,
		Entries:     make([]*leaderboard.Entry, 0, len(cs.Entries)),
	}
	for _, e := range cs.Entries {
		s.Entries = append(s.Entries, &leaderboard.Entry{
			UserID:       event.UserID(e.UserID),
			Period:       s.Period,
			PeriodLabel:  s.PeriodLabel,
			Rank:         leaderboard.Rank(e.Rank),
			Score:        e.Score,
			EventCount:   e.EventCount,
			AverageScore: e.AverageScore,
			HighestScore: e.HighestScore,
			LastEventAt:  e.LastEventAt,
			ComputedAt:   cs.ComputedAt,
		})
	}
	return s, nil
}

// Invalidate drops the cached snapshot for the pair.
func (lc *LeaderboardCache) Invalidate(ctx context.Context, period leaderboard.Period, label string) error {
	return lc.cache.Delete(ctx, snapshotKey(period, label))
}
