// Package badge contains the badge catalog and award model. A badge is a
// declarative definition (what to celebrate, how to earn it); a UserBadge
// is the immutable record of one user earning one badge.
package badge

import (
	"errors"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// Domain errors for the badge package.
var (
	ErrInvalidID       = errors.New("badge: invalid badge ID")
	ErrInvalidName     = errors.New("badge: name is required")
	ErrInvalidCategory = errors.New("badge: unknown category")
	ErrInvalidTier     = errors.New("badge: unknown tier")
	ErrInvalidRarity   = errors.New("badge: unknown rarity")
	ErrInvalidCriteria = errors.New("badge: invalid criteria")
	ErrNotFound        = errors.New("badge: not found")
	ErrAlreadyAwarded  = errors.New("badge: already awarded")
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID is the stable string key of a badge definition (e.g. "first-lesson").
type ID string

// IsValid checks if the badge ID is valid.
func (id ID) IsValid() bool {
	return id != ""
}

// String returns the string representation of the badge ID.
func (id ID) String() string {
	return string(id)
}

// Category groups badges by the kind of activity they celebrate.
type Category string

const (
	CategoryLearning   Category = "learning"
	CategoryAssessment Category = "assessment"
	CategoryStreak     Category = "streak"
	CategoryCommunity  Category = "community"
	CategoryCareer     Category = "career"
)

// IsValid checks whether the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryLearning, CategoryAssessment, CategoryStreak,
		CategoryCommunity, CategoryCareer:
		return true
	}
	return false
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// Tier is the badge level inside a family of related badges.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// IsValid checks whether the tier is known.
func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// Weight returns the ordering weight of the tier (bronze lowest).
func (t Tier) Weight() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierPlatinum:
		return 4
	}
	return 0
}

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// Rarity signals how hard a badge is to come by, independent of tier.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid checks whether the rarity is known.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// String returns the string representation of the rarity.
func (r Rarity) String() string {
	return string(r)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Badge is one entry in the badge catalog. The catalog is seeded at deploy
// time; definitions are addressed by their stable ID.
type Badge struct {
	ID          ID
	Name        string
	Description string
	Category    Category
	Tier        Tier
	Rarity      Rarity
	Criteria    Criteria
	Points      int
	Active      bool
	CreatedAt   time.Time
}

// Validate checks the badge definition for internal consistency.
func (b *Badge) Validate() error {
	if !b.ID.IsValid() {
		return ErrInvalidID
	}
	if b.Name == "" {
		return ErrInvalidName
	}
	if !b.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !b.Tier.IsValid() {
		return ErrInvalidTier
	}
	if !b.Rarity.IsValid() {
		return ErrInvalidRarity
	}
	if b.Criteria == nil {
		return ErrInvalidCriteria
	}
	return b.Criteria.Validate()
}

// UserBadge is the immutable award record. One user earns one badge at
// most once; (UserID, BadgeID) is unique in storage.
type UserBadge struct {
	ID       string
	UserID   event.UserID
	BadgeID  ID
	EarnedAt time.Time

	// TriggerEventID is the event whose evaluation produced the award,
	// kept for audit.
	TriggerEventID string
}
