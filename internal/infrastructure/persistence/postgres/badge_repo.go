package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository over the badges table.
type BadgeRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{
		conn: conn,
		log:  logger.Default().With(logger.Component("badge_repository")),
	}
}

// GetByID returns the badge definition, or badge.ErrNotFound.
func (r *BadgeRepository) GetByID(ctx context.Context, id badge.ID) (*badge.Badge, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, name, description, category, tier, rarity, criteria, points, active, created_at
		FROM badges
		WHERE id = $1
	`, id.String())

	b, err := scanBadge(row)
	if IsNoRows(err) {
		return nil, badge.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	return b, nil
}

// ListActive returns all active badge definitions ordered by category then
// tier weight.
func (r *BadgeRepository) ListActive(ctx context.Context) ([]*badge.Badge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, description, category, tier, rarity, criteria, points, active, created_at
		FROM badges
		WHERE active
		ORDER BY category,
			CASE tier
				WHEN 'bronze' THEN 1
				WHEN 'silver' THEN 2
				WHEN 'gold' THEN 3
				WHEN 'platinum' THEN 4
			END
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if errors.Is(err, badge.ErrInvalidCriteria) {
			// One corrupt definition must not take the whole catalog down.
			r.log.Warn("skipping badge with invalid criteria", logger.Err(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// Upsert inserts or replaces a badge definition.
func (r *BadgeRepository) Upsert(ctx context.Context, b *badge.Badge) error {
	if err := b.Validate(); err != nil {
		return err
	}
	criteria, err := badge.EncodeCriteria(b.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO badges (id, name, description, category, tier, rarity, criteria, points, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			tier = EXCLUDED.tier,
			rarity = EXCLUDED.rarity,
			criteria = EXCLUDED.criteria,
			points = EXCLUDED.points,
			active = EXCLUDED.active
	`,
		b.ID.String(),
		b.Name,
		b.Description,
		b.Category.String(),
		b.Tier.String(),
		b.Rarity.String(),
		criteria,
		b.Points,
		b.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert badge: %w", err)
	}
	return nil
}

func scanBadge(row rowScanner) (*badge.Badge, error) {
	var (
		b        badge.Badge
		id       string
		category string
		tier     string
		rarity   string
		criteria []byte
	)

	err := row.Scan(
		&id,
		&b.Name,
		&b.Description,
		&category,
		&tier,
		&rarity,
		&criteria,
		&b.Points,
		&b.Active,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ID = badge.ID(id)
	b.Category = badge.Category(category)
	b.Tier = badge.Tier(tier)
	b.Rarity = badge.Rarity(rarity)

	c, err := badge.DecodeCriteria(criteria)
	if err != nil {
		return nil, fmt.Errorf("badge %s: %w", id, err)
	}
	b.Criteria = c
	return &b, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AwardRepository implements badge.AwardRepository over the user_badges
// table. The (user_id, badge_id) unique constraint is the idempotency
// guarantee: concurrent evaluations can both decide to award, only one
// insert wins.
type AwardRepository struct {
	conn *Connection
}

// NewAwardRepository creates a new AwardRepository.
func NewAwardRepository(conn *Connection) *AwardRepository {
	return &AwardRepository{conn: conn}
}

// Award records the earned badge. When the award already exists it returns
// the stored record and badge.ErrAlreadyAwarded.
func (r *AwardRepository) Award(ctx context.Context, ub *badge.UserBadge) (*badge.UserBadge, error) {
	var trigger *string
	if ub.TriggerEventID != "" {
		trigger = &ub.TriggerEventID
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO user_badges (id, user_id, badge_id, earned_at, trigger_event_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`,
		ub.ID,
		ub.UserID.String(),
		ub.BadgeID.String(),
		ub.EarnedAt,
		trigger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert award: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return ub, nil
	}

	stored, err := r.get(ctx, ub.UserID, ub.BadgeID)
	if err != nil {
		return nil, err
	}
	return stored, badge.ErrAlreadyAwarded
}

// ListByUser returns the user's awards ordered by earn time ascending.
func (r *AwardRepository) ListByUser(ctx context.Context, userID event.UserID) ([]*badge.UserBadge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, badge_id, earned_at, COALESCE(trigger_event_id::text, '')
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	defer rows.Close()

	var awards []*badge.UserBadge
	for rows.Next() {
		ub, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, ub)
	}
	return awards, rows.Err()
}

// Has reports whether the user already earned the badge.
func (r *AwardRepository) Has(ctx context.Context, userID event.UserID, badgeID badge.ID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)
	`, userID.String(), badgeID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check award: %w", err)
	}
	return exists, nil
}

func (r *AwardRepository) get(ctx context.Context, userID event.UserID, badgeID badge.ID) (*badge.UserBadge, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, user_id, badge_id, earned_at, COALESCE(trigger_event_id::text, '')
		FROM user_badges
		WHERE user_id = $1 AND badge_id = $2
	`, userID.String(), badgeID.String())

	ub, err := scanAward(row)
	if IsNoRows(err) {
		return nil, badge.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get award: %w", err)
	}
	return ub, nil
}

func scanAward(row rowScanner) (*badge.UserBadge, error) {
	var (
		ub      badge.UserBadge
		userID  string
		badgeID string
	)

	err := row.Scan(&ub.ID, &userID, &badgeID, &ub.EarnedAt, &ub.TriggerEventID)
	if err != nil {
		return nil, err
	}

	ub.UserID = event.UserID(userID)
	ub.BadgeID = badge.ID(badgeID)
	ub.EarnedAt = ub.EarnedAt.UTC()
	return &ub, nil
}
