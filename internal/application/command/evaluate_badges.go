// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/shared"
	"github.com/skillforge-hub/achievement-engine/pkg/keyedmutex"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE BADGES COMMAND
// Runs every active badge rule against one user's aggregates and awards
// anything newly met. Evaluation per user is serialized; idempotency is
// anchored by the (user, badge) uniqueness of the award store.
// ══════════════════════════════════════════════════════════════════════════════

// CooldownStore suppresses repeat evaluation of a (user, badge) pair for
// a short window. Acquire reports whether the caller may evaluate now.
type CooldownStore interface {
	Acquire(ctx context.Context, userID event.UserID, badgeID badge.ID) (bool, error)
}

// NopCooldown never suppresses anything.
type NopCooldown struct{}

// Acquire implements CooldownStore.
func (NopCooldown) Acquire(context.Context, event.UserID, badge.ID) (bool, error) {
	return true, nil
}

// EvaluateBadgesCommand asks for a full rule evaluation of one user.
type EvaluateBadgesCommand struct {
	// UserID is the user to evaluate.
	UserID event.UserID

	// TriggerEventID is the activity event that prompted the evaluation,
	// recorded on any resulting awards for audit. Empty for scheduled or
	// manual evaluations.
	TriggerEventID string

	// TriggerType is the trigger event's activity type. When set, only
	// rules whose criteria that type can affect are evaluated; empty
	// evaluates the whole catalog.
	TriggerType event.Type

	// Now is the evaluation instant (defaults to time.Now).
	Now time.Time
}

// Validate validates the command.
func (c EvaluateBadgesCommand) Validate() error {
	if !c.UserID.IsValid() {
		return event.ErrInvalidUserID
	}
	return nil
}

// EvaluateBadgesResult contains the outcome of one evaluation pass.
type EvaluateBadgesResult struct {
	// NewlyAwarded lists the badges this pass awarded, in catalog order.
	// Badges earned earlier or lost to a concurrent pass are not listed.
	NewlyAwarded []*badge.UserBadge

	// Evaluated is the number of rules actually checked.
	Evaluated int

	// Skipped is the number of rules skipped (already earned, not
	// applicable to the trigger, malformed, cooldown).
	Skipped int
}

// EvaluateBadgesHandler handles the EvaluateBadgesCommand.
type EvaluateBadgesHandler struct {
	badges    badge.Repository
	awards    badge.AwardRepository
	source    badge.Source
	locks     *keyedmutex.KeyedMutex
	cooldown  CooldownStore
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewEvaluateBadgesHandler creates a new EvaluateBadgesHandler.
func NewEvaluateBadgesHandler(
	badges badge.Repository,
	awards badge.AwardRepository,
	source badge.Source,
	locks *keyedmutex.KeyedMutex,
	cooldown CooldownStore,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *EvaluateBadgesHandler {
	if locks == nil {
		locks = keyedmutex.New()
	}
	if cooldown == nil {
		cooldown = NopCooldown{}
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}

	return &EvaluateBadgesHandler{
		badges:    badges,
		awards:    awards,
		source:    source,
		locks:     locks,
		cooldown:  cooldown,
		publisher: publisher,
		log:       log.With(logger.Component("evaluate_badges")),
	}
}

// Handle executes the evaluate badges command.
func (h *EvaluateBadgesHandler) Handle(ctx context.Context, cmd EvaluateBadgesCommand) (*EvaluateBadgesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate_badges: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Serialize per user so two concurrent evaluations in this process
	// cannot interleave their read-then-award steps.
	h.locks.Lock(cmd.UserID.String())
	defer h.locks.Unlock(cmd.UserID.String())

	catalog, err := h.badges.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate_badges: failed to load catalog: %w", err)
	}

	result := &EvaluateBadgesResult{}

	for _, b := range catalog {
		// A malformed definition is skipped; the rest of the pass still
		// runs to completion.
		if err := validCriteria(b); err != nil {
			h.log.Warn("skipping rule with invalid criteria",
				logger.BadgeKey(b.ID.String()),
				logger.Err(err),
			)
			result.Skipped++
			continue
		}

		if cmd.TriggerType != "" && !b.Criteria.AppliesTo(cmd.TriggerType) {
			result.Skipped++
			continue
		}

		earned, err := h.awards.Has(ctx, cmd.UserID, b.ID)
		if err != nil {
			return nil, fmt.Errorf("evaluate_badges: failed to check award: %w", err)
		}
		if earned {
			result.Skipped++
			continue
		}

		// Only composite rules pass through the cooldown. Every other
		// kind evaluates on each trigger, so the event that crosses a
		// threshold returns its award synchronously.
		if b.Criteria.Kind() == badge.KindCompositeTotal {
			ok, err := h.cooldown.Acquire(ctx, cmd.UserID, b.ID)
			if err != nil {
				// A broken cooldown store must not block awards; evaluate anyway.
				h.log.Warn("cooldown store unavailable",
					logger.UserID(cmd.UserID.String()),
					logger.BadgeKey(b.ID.String()),
					logger.Err(err),
				)
			} else if !ok {
				result.Skipped++
				continue
			}
		}

		result.Evaluated++

		met, err := b.Criteria.Met(ctx, h.source, cmd.UserID, now)
		if err != nil {
			return nil, fmt.Errorf("evaluate_badges: rule %s failed: %w", b.ID, err)
		}
		if !met {
			continue
		}

		ub := &badge.UserBadge{
			ID:             uuid.NewString(),
			UserID:         cmd.UserID,
			BadgeID:        b.ID,
			EarnedAt:       now,
			TriggerEventID: cmd.TriggerEventID,
		}

		stored, err := h.awards.Award(ctx, ub)
		if errors.Is(err, badge.ErrAlreadyAwarded) {
			// Lost the race to a concurrent evaluation; not newly awarded
			// from this pass's point of view.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("evaluate_badges: failed to award %s: %w", b.ID, err)
		}

		result.NewlyAwarded = append(result.NewlyAwarded, stored)

		h.log.Info("badge awarded",
			logger.UserID(cmd.UserID.String()),
			logger.BadgeKey(b.ID.String()),
			logger.Points(b.Points),
		)

		ev := shared.BadgeAwardedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventBadgeAwarded, cmd.UserID.String()),
			UserID:    cmd.UserID.String(),
			BadgeID:   b.ID.String(),
			Points:    b.Points,
		}
		if err := h.publisher.Publish(ev); err != nil {
			h.log.Warn("failed to publish badge event", logger.Err(err))
		}
	}

	return result, nil
}

// validCriteria guards the evaluation loop against corrupt definitions.
func validCriteria(b *badge.Badge) error {
	if b.Criteria == nil {
		return badge.ErrInvalidCriteria
	}
	return b.Criteria.Validate()
}
