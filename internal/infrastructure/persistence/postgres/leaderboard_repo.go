package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository and
// leaderboard.StatsSource over the leaderboard_entries and activity_events
// tables.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

const entryColumns = `user_id, period, period_label, rank, score, event_count, average_score, highest_score, last_event_at, computed_at`

// ─────────────────────────────────────────────────────────────────────────────
// SNAPSHOT OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

// Replace atomically swaps the stored snapshot for the snapshot's
// (period, label) pair: delete plus batch insert inside one transaction,
// so concurrent readers see the old or the new ranking in full.
func (r *LeaderboardRepository) Replace(ctx context.Context, s *leaderboard.Snapshot) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM leaderboard_entries
			WHERE period = $1 AND period_label = $2
		`, s.Period.String(), s.PeriodLabel)
		if err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}

		if len(s.Entries) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, e := range s.Entries {
			batch.Queue(`
				INSERT INTO leaderboard_entries (`+entryColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				e.UserID.String(),
				e.Period.String(),
				e.PeriodLabel,
				int(e.Rank),
				e.Score,
				e.EventCount,
				e.AverageScore,
				e.HighestScore,
				e.LastEventAt,
				e.ComputedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range s.Entries {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to insert entry: %w", err)
			}
		}
		return nil
	})
}

// GetSnapshot returns the stored snapshot for the pair, or
// leaderboard.ErrNotFound when no ranking has been computed yet.
func (r *LeaderboardRepository) GetSnapshot(ctx context.Context, period leaderboard.Period, label string) (*leaderboard.Snapshot, error) {
	entries, err := r.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM leaderboard_entries
		WHERE period = $1 AND period_label = $2
		ORDER BY rank ASC
	`, period.String(), label)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, leaderboard.ErrNotFound
	}

	return &leaderboard.Snapshot{
		Period:      period,
		PeriodLabel: label,
		Entries:     entries,
		ComputedAt:  entries[0].ComputedAt,
	}, nil
}

// GetEntry returns one user's entry in the pair, or leaderboard.ErrNotFound.
func (r *LeaderboardRepository) GetEntry(ctx context.Context, period leaderboard.Period, label string, userID event.UserID) (*leaderboard.Entry, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM leaderboard_entries
		WHERE period = $1 AND period_label = $2 AND user_id = $3
	`, period.String(), label, userID.String())

	e, err := scanEntry(row)
	if IsNoRows(err) {
		return nil, leaderboard.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// Top returns the first n entries of the pair ordered by rank.
func (r *LeaderboardRepository) Top(ctx context.Context, period leaderboard.Period, label string, n int) ([]*leaderboard.Entry, error) {
	if n < 1 {
		return nil, nil
	}
	return r.queryEntries(ctx, `
		SELECT `+entryColumns+`
		FROM leaderboard_entries
		WHERE period = $1 AND period_label = $2
		ORDER BY rank ASC
		LIMIT $3
	`, period.String(), label, n)
}

// ─────────────────────────────────────────────────────────────────────────────
// STATS SOURCE
// ─────────────────────────────────────────────────────────────────────────────

// CollectStats computes the per-user aggregates for the window in one
// grouped pass over the activity log.
func (r *LeaderboardRepository) CollectStats(ctx context.Context, w event.Window) ([]leaderboard.UserStats, error) {
	query := `
		SELECT
			user_id,
			COUNT(*),
			COALESCE(AVG(score), 0),
			COALESCE(MAX(score), 0),
			MAX(occurred_at)
		FROM activity_events
		WHERE TRUE
	`
	args := []interface{}{}
	query, args = appendWindow(query, args, w)
	query += " GROUP BY user_id"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	defer rows.Close()

	var stats []leaderboard.UserStats
	for rows.Next() {
		var (
			s  leaderboard.UserStats
			id string
		)
		if err := rows.Scan(&id, &s.EventCount, &s.AverageScore, &s.HighestScore, &s.LastEventAt); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		s.UserID = event.UserID(id)
		s.LastEventAt = s.LastEventAt.UTC()
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func (r *LeaderboardRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*leaderboard.Entry, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*leaderboard.Entry, error) {
	var (
		e      leaderboard.Entry
		userID string
		period string
		rank   int
	)

	err := row.Scan(
		&userID,
		&period,
		&e.PeriodLabel,
		&rank,
		&e.Score,
		&e.EventCount,
		&e.AverageScore,
		&e.HighestScore,
		&e.LastEventAt,
		&e.ComputedAt,
	)
	if err != nil {
		return nil, err
	}

	e.UserID = event.UserID(userID)
	e.Period = leaderboard.Period(period)
	e.Rank = leaderboard.Rank(rank)
	e.LastEventAt = e.LastEventAt.UTC()
	e.ComputedAt = e.ComputedAt.UTC()
	return &e, nil
}
