// Package persistence wires the storage implementations into the domain
// interfaces that cut across single repositories.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
)

// CriteriaSource implements badge.Source by combining the activity
// aggregates with the streak store. The streak value it reports is the
// effective run length at now: a stale streak reads as zero even before
// an event arrives to reset it.
type CriteriaSource struct {
	event.AggregateReader
	streaks streak.Repository
	now     func() time.Time
}

// NewCriteriaSource creates a CriteriaSource. now defaults to time.Now.
func NewCriteriaSource(agg event.AggregateReader, streaks streak.Repository, now func() time.Time) *CriteriaSource {
	if now == nil {
		now = time.Now
	}
	return &CriteriaSource{AggregateReader: agg, streaks: streaks, now: now}
}

// CurrentStreak returns the user's effective streak length.
func (s *CriteriaSource) CurrentStreak(ctx context.Context, userID event.UserID) (int, error) {
	st, err := s.streaks.Get(ctx, userID)
	if errors.Is(err, streak.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.EffectiveCurrent(s.now()), nil
}
