package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION COOLDOWN
// ══════════════════════════════════════════════════════════════════════════════

// CooldownStore marks (user, badge) pairs as recently evaluated so a burst
// of events does not re-run the same unmet rule on every event. The marker
// expires on its own; a missing Redis degrades to always-evaluate.
type CooldownStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewCooldownStore creates a CooldownStore with the default TTL.
func NewCooldownStore(cache *Cache) *CooldownStore {
	return &CooldownStore{cache: cache, ttl: TTLCooldown}
}

// NewCooldownStoreWithTTL creates a CooldownStore with a custom TTL.
func NewCooldownStoreWithTTL(cache *Cache, ttl time.Duration) *CooldownStore {
	return &CooldownStore{cache: cache, ttl: ttl}
}

// Acquire reports whether the caller may evaluate the pair now, and if so
// starts the cooldown.
func (s *CooldownStore) Acquire(ctx context.Context, userID event.UserID, badgeID badge.ID) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", PrefixCooldown, userID, badgeID)
	return s.cache.SetMarker(ctx, key, s.ttl)
}
