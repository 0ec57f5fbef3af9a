package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded schema migrations in order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_activity_events",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_badges",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_streaks_and_goals",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_leaderboard",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ACTIVITY EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Append-only activity log. Events are never updated or deleted.
CREATE TABLE IF NOT EXISTS activity_events (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    event_type VARCHAR(32) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    score DOUBLE PRECISION,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    dedup_key VARCHAR(64) NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Idempotent recording: a retried submission hits this constraint.
    CONSTRAINT uq_activity_events_user_dedup UNIQUE (user_id, dedup_key),

    CONSTRAINT valid_event_type CHECK (event_type IN (
        'lesson_complete', 'test_attempt', 'live_coding_attempt',
        'bugfix_attempt', 'job_application', 'post_like',
        'post_comment', 'follow'
    ))
);

-- Windowed aggregate queries: count/avg/max per user, type and time range.
CREATE INDEX IF NOT EXISTS idx_activity_events_user_type_time
    ON activity_events(user_id, event_type, occurred_at);
CREATE INDEX IF NOT EXISTS idx_activity_events_user_time
    ON activity_events(user_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_activity_events_time
    ON activity_events(occurred_at);
`

const migration001Down = `
DROP TABLE IF EXISTS activity_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BADGES AND AWARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Badge catalog, seeded at deploy time.
CREATE TABLE IF NOT EXISTS badges (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(20) NOT NULL,
    tier VARCHAR(20) NOT NULL,
    rarity VARCHAR(20) NOT NULL DEFAULT 'common',
    criteria JSONB NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_category CHECK (category IN (
        'learning', 'assessment', 'streak', 'community', 'career'
    )),
    CONSTRAINT valid_tier CHECK (tier IN (
        'bronze', 'silver', 'gold', 'platinum'
    )),
    CONSTRAINT valid_rarity CHECK (rarity IN (
        'common', 'rare', 'epic', 'legendary'
    )),
    CONSTRAINT valid_points CHECK (points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_badges_active ON badges(category, tier) WHERE active;

-- Earned badges. A user earns each badge at most once.
CREATE TABLE IF NOT EXISTS user_badges (
    id UUID PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    badge_id VARCHAR(64) NOT NULL REFERENCES badges(id),
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    trigger_event_id UUID,

    CONSTRAINT uq_user_badges_user_badge UNIQUE (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id, earned_at);
`

const migration002Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS badges;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: STREAKS AND DAILY GOALS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS user_streaks (
    user_id VARCHAR(64) PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_active_day DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_current CHECK (current_streak >= 0),
    CONSTRAINT valid_longest CHECK (longest_streak >= current_streak)
);

CREATE TABLE IF NOT EXISTS daily_goals (
    user_id VARCHAR(64) NOT NULL,
    day DATE NOT NULL,
    goal_type VARCHAR(20) NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, day, goal_type),

    CONSTRAINT valid_goal_type CHECK (goal_type IN (
        'complete_lesson', 'pass_test', 'engage'
    ))
);
`

const migration003Down = `
DROP TABLE IF EXISTS daily_goals;
DROP TABLE IF EXISTS user_streaks;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: LEADERBOARD SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- One row per ranked user per (period, label) snapshot. The ranking job
-- replaces the whole pair atomically inside a transaction.
CREATE TABLE IF NOT EXISTS leaderboard_entries (
    user_id VARCHAR(64) NOT NULL,
    period VARCHAR(10) NOT NULL,
    period_label VARCHAR(10) NOT NULL,
    rank INTEGER NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    event_count BIGINT NOT NULL,
    average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    highest_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_event_at TIMESTAMP WITH TIME ZONE NOT NULL,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (period, period_label, user_id),

    CONSTRAINT valid_period CHECK (period IN ('daily', 'weekly', 'monthly')),
    CONSTRAINT valid_rank CHECK (rank >= 1)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_leaderboard_period_rank
    ON leaderboard_entries(period, period_label, rank);
`

const migration004Down = `
DROP TABLE IF EXISTS leaderboard_entries;
`
