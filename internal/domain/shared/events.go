// Package shared contains the domain event contracts used across the
// engine's packages.
package shared

import (
	"time"
)

// EventType identifies a domain event kind.
type EventType string

const (
	// EventActivityRecorded is emitted when a new activity event lands in
	// the log (not for deduplicated replays).
	EventActivityRecorded EventType = "engine.activity_recorded"

	// EventBadgeAwarded is emitted when a user earns a badge.
	EventBadgeAwarded EventType = "engine.badge_awarded"

	// EventStreakAdvanced is emitted when a user's streak grows or resets.
	EventStreakAdvanced EventType = "engine.streak_advanced"

	// EventLeaderboardComputed is emitted after a ranking snapshot is
	// replaced.
	EventLeaderboardComputed EventType = "engine.leaderboard_computed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Engine Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityRecordedEvent is emitted when a new activity event is stored.
type ActivityRecordedEvent struct {
	BaseEvent
	UserID      string    `json:"user_id"`
	ActivityID  string    `json:"activity_id"`
	Activity    string    `json:"activity"`
	HappenedAt  time.Time `json:"happened_at"`
}

// Payload implements Event interface.
func (e ActivityRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"activity_id": e.ActivityID,
		"activity":    e.Activity,
		"happened_at": e.HappenedAt,
	}
}

// BadgeAwardedEvent is emitted when a user earns a badge.
type BadgeAwardedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	BadgeID string `json:"badge_id"`
	Points  int    `json:"points"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"badge_id": e.BadgeID,
		"points":   e.Points,
	}
}

// StreakAdvancedEvent is emitted when a user's streak changes.
type StreakAdvancedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	Reset   bool   `json:"reset"`
}

// Payload implements Event interface.
func (e StreakAdvancedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"current": e.Current,
		"longest": e.Longest,
		"reset":   e.Reset,
	}
}

// LeaderboardComputedEvent is emitted after a snapshot replace.
type LeaderboardComputedEvent struct {
	BaseEvent
	Period      string `json:"period"`
	PeriodLabel string `json:"period_label"`
	Entries     int    `json:"entries"`
}

// Payload implements Event interface.
func (e LeaderboardComputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"period":       e.Period,
		"period_label": e.PeriodLabel,
		"entries":      e.Entries,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Publishing
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a published event.
type EventHandler func(Event) error

// EventPublisher delivers domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// NopPublisher discards all events. Used where no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
