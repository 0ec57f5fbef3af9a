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
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
	"github.com/skillforge-hub/achievement-engine/pkg/keyedmutex"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD EVENT COMMAND
// The single write entry point of the engine. Recording is idempotent:
// a retried submission is detected by its dedup key and produces no side
// effects, only the original event echoed back.
// ══════════════════════════════════════════════════════════════════════════════

// RecordEventCommand contains the data to record one activity event.
type RecordEventCommand struct {
	// UserID is the acting user.
	UserID event.UserID

	// Type is the activity event type.
	Type event.Type

	// Payload carries the event data; the identity fields required by the
	// type must be present.
	Payload event.Payload

	// OccurredAt is when the action happened (defaults to now if zero).
	OccurredAt time.Time
}

// Validate validates the command.
func (c RecordEventCommand) Validate() error {
	if !c.UserID.IsValid() {
		return event.ErrInvalidUserID
	}
	if !c.Type.IsValid() {
		return event.ErrInvalidType
	}
	return nil
}

// RecordEventResult contains the result of recording an event.
type RecordEventResult struct {
	// Event is the stored event: the new one, or on a duplicate the
	// original it collapsed into.
	Event *event.ActivityEvent

	// Duplicate indicates the submission was a replay and nothing changed.
	Duplicate bool

	// StreakCurrent and StreakLongest are the user's streak after this
	// event.
	StreakCurrent int
	StreakLongest int

	// GoalCompleted indicates this event flipped a daily goal cell.
	GoalCompleted bool

	// NewBadges lists the badges this event's evaluation pass awarded,
	// returned synchronously so the caller can surface them immediately.
	NewBadges []*badge.UserBadge
}

// RecordEventHandler handles the RecordEventCommand.
type RecordEventHandler struct {
	events    event.Repository
	streaks   streak.Repository
	goals     streak.GoalRepository
	evaluator *EvaluateBadgesHandler
	publisher shared.EventPublisher
	locks     *keyedmutex.KeyedMutex
	log       *logger.Logger
}

// NewRecordEventHandler creates a new RecordEventHandler.
func NewRecordEventHandler(
	events event.Repository,
	streaks streak.Repository,
	goals streak.GoalRepository,
	evaluator *EvaluateBadgesHandler,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RecordEventHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}

	return &RecordEventHandler{
		events:    events,
		streaks:   streaks,
		goals:     goals,
		evaluator: evaluator,
		publisher: publisher,
		locks:     keyedmutex.New(),
		log:       log.With(logger.Component("record_event")),
	}
}

// Handle executes the record event command.
//
// The order matters: streak advancement and daily goal upkeep run before
// rule evaluation, so a streak rule sees today's activity already counted.
func (h *RecordEventHandler) Handle(ctx context.Context, cmd RecordEventCommand) (*RecordEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_event: validation failed: %w", err)
	}

	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ev, err := event.NewActivityEvent(uuid.NewString(), cmd.UserID, cmd.Type, cmd.Payload, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("record_event: %w", err)
	}

	stored, duplicate, err := h.events.Insert(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("record_event: failed to store event: %w", err)
	}

	result := &RecordEventResult{Event: stored, Duplicate: duplicate}

	if duplicate {
		// A replay changes nothing: no streak movement, no goals, no
		// evaluation. The caller gets the original event back.
		h.log.Debug("duplicate event ignored",
			logger.UserID(cmd.UserID.String()),
			logger.EventType(cmd.Type.String()),
		)
		return result, nil
	}

	h.log.Info("event recorded",
		logger.UserID(cmd.UserID.String()),
		logger.EventType(cmd.Type.String()),
		logger.String("event_id", stored.ID),
	)

	if err := h.publisher.Publish(shared.ActivityRecordedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventActivityRecorded, cmd.UserID.String()),
		UserID:     cmd.UserID.String(),
		ActivityID: stored.ID,
		Activity:   cmd.Type.String(),
		HappenedAt: stored.OccurredAt,
	}); err != nil {
		h.log.Warn("failed to publish activity event", logger.Err(err))
	}

	// The streak read-modify-write must not interleave with a concurrent
	// record for the same user; goal upkeep and evaluation stay under the
	// same lock so rules see the settled state.
	h.locks.Lock(cmd.UserID.String())
	defer h.locks.Unlock(cmd.UserID.String())

	if err := h.advanceStreak(ctx, stored, result); err != nil {
		return nil, err
	}
	if err := h.upkeepDailyGoal(ctx, stored, result); err != nil {
		return nil, err
	}

	evalResult, err := h.evaluator.Handle(ctx, EvaluateBadgesCommand{
		UserID:         cmd.UserID,
		TriggerEventID: stored.ID,
		TriggerType:    stored.Type,
		Now:            stored.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("record_event: %w", err)
	}
	result.NewBadges = evalResult.NewlyAwarded

	return result, nil
}

// advanceStreak applies the event's day to the user's streak.
func (h *RecordEventHandler) advanceStreak(ctx context.Context, ev *event.ActivityEvent, result *RecordEventResult) error {
	st, err := h.streaks.Get(ctx, ev.UserID)
	if errors.Is(err, streak.ErrNotFound) {
		st = streak.NewUserStreak(ev.UserID)
	} else if err != nil {
		return fmt.Errorf("record_event: failed to load streak: %w", err)
	}

	previous := st.Current
	changed := st.Advance(ev.OccurredAt)
	result.StreakCurrent = st.Current
	result.StreakLongest = st.Longest

	if !changed {
		return nil
	}

	if err := h.streaks.Save(ctx, st); err != nil {
		return fmt.Errorf("record_event: failed to save streak: %w", err)
	}

	if err := h.publisher.Publish(shared.StreakAdvancedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStreakAdvanced, ev.UserID.String()),
		UserID:    ev.UserID.String(),
		Current:   st.Current,
		Longest:   st.Longest,
		Reset:     st.Current == 1 && previous > 1,
	}); err != nil {
		h.log.Warn("failed to publish streak event", logger.Err(err))
	}
	return nil
}

// upkeepDailyGoal flips the goal cell this event fulfills, if any.
func (h *RecordEventHandler) upkeepDailyGoal(ctx context.Context, ev *event.ActivityEvent, result *RecordEventResult) error {
	goalType, ok := streak.GoalForEvent(ev.Type)
	if !ok {
		return nil
	}

	day := timeutil.StartOfDay(ev.OccurredAt)
	flipped, err := h.goals.MarkCompleted(ctx, ev.UserID, day, goalType, ev.RecordedAt)
	if err != nil {
		return fmt.Errorf("record_event: failed to update daily goal: %w", err)
	}
	result.GoalCompleted = flipped
	return nil
}
