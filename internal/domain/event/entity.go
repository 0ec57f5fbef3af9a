// Package event contains the immutable activity log at the heart of the
// achievement engine. Every externally observable user action becomes one
// ActivityEvent; all aggregates, badges and rankings are derived from it.
// This is a pure domain layer with zero external dependencies beyond the
// dedup-key digest.
package event

import (
	"errors"
	"time"
)

// Domain errors for the event package.
var (
	ErrInvalidUserID  = errors.New("event: invalid user ID")
	ErrInvalidType    = errors.New("event: unknown event type")
	ErrInvalidPayload = errors.New("event: payload is missing required identity fields")
	ErrFutureTime     = errors.New("event: occurrence time cannot be in the future")
	ErrNotFound       = errors.New("event: not found")
)

// UserID identifies a learner across the whole engine.
type UserID string

// IsValid checks if the user ID is valid.
func (u UserID) IsValid() bool {
	return u != ""
}

// String returns the string representation of UserID.
func (u UserID) String() string {
	return string(u)
}

// Type enumerates the activity event types the engine understands.
type Type string

const (
	TypeLessonComplete    Type = "lesson_complete"
	TypeTestAttempt       Type = "test_attempt"
	TypeLiveCodingAttempt Type = "live_coding_attempt"
	TypeBugfixAttempt     Type = "bugfix_attempt"
	TypeJobApplication    Type = "job_application"
	TypePostLike          Type = "post_like"
	TypePostComment       Type = "post_comment"
	TypeFollow            Type = "follow"
)

// AllTypes lists every known event type.
func AllTypes() []Type {
	return []Type{
		TypeLessonComplete,
		TypeTestAttempt,
		TypeLiveCodingAttempt,
		TypeBugfixAttempt,
		TypeJobApplication,
		TypePostLike,
		TypePostComment,
		TypeFollow,
	}
}

// IsValid checks whether the type is one of the known activity types.
func (t Type) IsValid() bool {
	switch t {
	case TypeLessonComplete, TypeTestAttempt, TypeLiveCodingAttempt,
		TypeBugfixAttempt, TypeJobApplication, TypePostLike,
		TypePostComment, TypeFollow:
		return true
	}
	return false
}

// IsScored reports whether events of this type carry a score in their
// payload (used by score aggregates).
func (t Type) IsScored() bool {
	switch t {
	case TypeTestAttempt, TypeLiveCodingAttempt, TypeBugfixAttempt:
		return true
	}
	return false
}

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// Payload is the opaque structured data attached to an event. The engine
// only inspects the identity fields needed for dedup-key derivation and
// the optional "score" field.
type Payload map[string]any

// String returns the payload value for key as a string, or "" if absent
// or of a different type.
func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Score returns the numeric "score" field, if present.
func (p Payload) Score() (float64, bool) {
	switch v := p["score"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// ActivityEvent is one immutable fact in the append-only activity log.
// Events are never mutated and never deleted; they are the basis for all
// aggregates and for audit.
type ActivityEvent struct {
	ID         string
	UserID     UserID
	Type       Type
	Payload    Payload
	OccurredAt time.Time

	// DedupKey collapses retried submissions of the same logical action.
	// (UserID, DedupKey) is unique in storage.
	DedupKey string

	// Score is the numeric score extracted from the payload at record
	// time, for scored event types. Nil otherwise.
	Score *float64

	RecordedAt time.Time
}

// NewActivityEvent validates inputs, derives the dedup key and builds the
// event. The id is assigned by the caller (the recorder generates one).
func NewActivityEvent(id string, userID UserID, typ Type, payload Payload, occurredAt time.Time) (*ActivityEvent, error) {
	if !userID.IsValid() {
		return nil, ErrInvalidUserID
	}
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}
	if occurredAt.After(time.Now().Add(time.Minute)) { // Allow 1 minute tolerance
		return nil, ErrFutureTime
	}

	key, err := DeriveDedupKey(typ, payload, occurredAt)
	if err != nil {
		return nil, err
	}

	ev := &ActivityEvent{
		ID:         id,
		UserID:     userID,
		Type:       typ,
		Payload:    payload,
		OccurredAt: occurredAt.UTC(),
		DedupKey:   key,
		RecordedAt: time.Now().UTC(),
	}

	if typ.IsScored() {
		if s, ok := payload.Score(); ok {
			ev.Score = &s
		}
	}

	return ev, nil
}
