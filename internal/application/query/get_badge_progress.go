// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BADGE PROGRESS QUERY
// Computes a user's standing against every active badge. Stateless: reads
// aggregates and award records, stores nothing.
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgeProgressQuery asks for one user's progress across the catalog.
type GetBadgeProgressQuery struct {
	// UserID is the user to report on.
	UserID event.UserID

	// BadgeID narrows the report to a single badge when set.
	BadgeID badge.ID

	// Now is the evaluation instant (defaults to time.Now). Rolling and
	// calendar windows are anchored here.
	Now time.Time
}

// Validate validates the query.
func (q GetBadgeProgressQuery) Validate() error {
	if !q.UserID.IsValid() {
		return event.ErrInvalidUserID
	}
	return nil
}

// BadgeProgressItem pairs a badge definition with the user's progress.
type BadgeProgressItem struct {
	Badge    *badge.Badge
	Progress badge.Progress
}

// GetBadgeProgressResult contains the progress report.
type GetBadgeProgressResult struct {
	UserID event.UserID
	Items  []BadgeProgressItem
}

// GetBadgeProgressHandler handles the GetBadgeProgressQuery.
type GetBadgeProgressHandler struct {
	badges badge.Repository
	awards badge.AwardRepository
	source badge.Source
	log    *logger.Logger
}

// NewGetBadgeProgressHandler creates a new GetBadgeProgressHandler.
func NewGetBadgeProgressHandler(
	badges badge.Repository,
	awards badge.AwardRepository,
	source badge.Source,
	log *logger.Logger,
) *GetBadgeProgressHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetBadgeProgressHandler{
		badges: badges,
		awards: awards,
		source: source,
		log:    log.With(logger.Component("get_badge_progress")),
	}
}

// Handle executes the get badge progress query.
func (h *GetBadgeProgressHandler) Handle(ctx context.Context, q GetBadgeProgressQuery) (*GetBadgeProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_badge_progress: validation failed: %w", err)
	}

	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var catalog []*badge.Badge
	if q.BadgeID.IsValid() {
		b, err := h.badges.GetByID(ctx, q.BadgeID)
		if err != nil {
			return nil, fmt.Errorf("get_badge_progress: %w", err)
		}
		catalog = []*badge.Badge{b}
	} else {
		var err error
		catalog, err = h.badges.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("get_badge_progress: failed to load catalog: %w", err)
		}
	}

	earned, err := h.earnedSet(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	result := &GetBadgeProgressResult{
		UserID: q.UserID,
		Items:  make([]BadgeProgressItem, 0, len(catalog)),
	}

	for _, b := range catalog {
		p, err := badge.ComputeProgress(ctx, h.source, b, q.UserID, earned[b.ID], now)
		if err != nil {
			return nil, fmt.Errorf("get_badge_progress: badge %s: %w", b.ID, err)
		}
		result.Items = append(result.Items, BadgeProgressItem{Badge: b, Progress: p})
	}

	return result, nil
}

func (h *GetBadgeProgressHandler) earnedSet(ctx context.Context, userID event.UserID) (map[badge.ID]bool, error) {
	awards, err := h.awards.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_badge_progress: failed to load awards: %w", err)
	}
	earned := make(map[badge.ID]bool, len(awards))
	for _, ub := range awards {
		earned[ub.BadgeID] = true
	}
	return earned, nil
}
