package event

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"golang.org/x/crypto/blake2b"

	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// DeriveDedupKey computes the deterministic deduplication key for an event.
// The key is a short digest over the event type plus the identity fields
// that make the action logically unique:
//
//	lesson_complete      lesson slug + UTC day of occurrence
//	test_attempt         attempt ID
//	live_coding_attempt  attempt ID
//	bugfix_attempt       attempt ID
//	job_application      posting ID + UTC day of occurrence
//	post_like            target post ID
//	post_comment         comment ID
//	follow               target user ID
//
// A missing identity field yields ErrInvalidPayload: the engine refuses to
// record an event it cannot deduplicate.
func DeriveDedupKey(typ Type, payload Payload, occurredAt time.Time) (string, error) {
	parts, err := identityParts(typ, payload, occurredAt)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16]), nil
}

func identityParts(typ Type, payload Payload, occurredAt time.Time) ([]string, error) {
	day := timeutil.DayLabel(occurredAt)

	switch typ {
	case TypeLessonComplete:
		s := payload.String("lesson_slug")
		if s == "" {
			return nil, ErrInvalidPayload
		}
		// Normalize the slug so "Go Basics" and "go-basics" collapse.
		return []string{typ.String(), slug.Make(s), day}, nil

	case TypeTestAttempt, TypeLiveCodingAttempt, TypeBugfixAttempt:
		id := payload.String("attempt_id")
		if id == "" {
			return nil, ErrInvalidPayload
		}
		return []string{typ.String(), id}, nil

	case TypeJobApplication:
		id := payload.String("posting_id")
		if id == "" {
			return nil, ErrInvalidPayload
		}
		return []string{typ.String(), id, day}, nil

	case TypePostLike:
		id := payload.String("target_id")
		if id == "" {
			return nil, ErrInvalidPayload
		}
		return []string{typ.String(), id}, nil

	case TypePostComment:
		id := payload.String("comment_id")
		if id == "" {
			return nil, ErrInvalidPayload
		}
		return []string{typ.String(), id}, nil

	case TypeFollow:
		id := payload.String("target_id")
		if id == "" {
			return nil, ErrInvalidPayload
		}
		return []string{typ.String(), id}, nil
	}

	return nil, ErrInvalidType
}
