package badge

import (
	"context"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// Progress describes how far a user is toward one badge.
type Progress struct {
	BadgeID ID
	// Current and Target are in the criterion's own unit (events, score
	// points, streak days).
	Current float64
	Target  float64
	// Percent is clamped to [0, 100]. An earned badge always reports 100
	// even if the underlying aggregate has since dropped (e.g. a rolling
	// window moved on).
	Percent float64
	Earned  bool
}

// ComputeProgress evaluates the user's standing against one badge. The
// calculation is stateless: it reads aggregates and the award record and
// stores nothing.
func ComputeProgress(ctx context.Context, src Source, b *Badge, userID event.UserID, earned bool, now time.Time) (Progress, error) {
	p := Progress{BadgeID: b.ID, Earned: earned}

	cur, target, err := b.Criteria.Progress(ctx, src, userID, now)
	if err != nil {
		return Progress{}, err
	}
	p.Current = cur
	p.Target = target
	p.Percent = percent(cur, target)

	// Awards are permanent; progress never regresses below done.
	if earned {
		p.Percent = 100
	}
	return p, nil
}

func percent(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	pct := current / target * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
