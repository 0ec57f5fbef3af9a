package badge

import (
	"context"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// Repository persists the badge catalog.
type Repository interface {
	// GetByID returns the badge definition, or ErrNotFound.
	GetByID(ctx context.Context, id ID) (*Badge, error)

	// ListActive returns all active badge definitions, ordered by
	// category then tier weight.
	ListActive(ctx context.Context) ([]*Badge, error)

	// Upsert inserts or replaces a badge definition. Used by catalog
	// seeding at startup.
	Upsert(ctx context.Context, b *Badge) error
}

// AwardRepository persists earned badges.
type AwardRepository interface {
	// Award records that the user earned the badge. When the award
	// already exists it returns the stored record and ErrAlreadyAwarded.
	Award(ctx context.Context, ub *UserBadge) (*UserBadge, error)

	// ListByUser returns the user's awards ordered by earn time ascending.
	ListByUser(ctx context.Context, userID event.UserID) ([]*UserBadge, error)

	// Has reports whether the user already earned the badge.
	Has(ctx context.Context, userID event.UserID, badgeID ID) (bool, error)
}
