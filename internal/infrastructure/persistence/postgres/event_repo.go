package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventRepository implements event.Repository and event.AggregateReader
// over the activity_events table.
type EventRepository struct {
	conn *Connection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

const eventColumns = `id, user_id, event_type, payload, score, occurred_at, dedup_key, recorded_at`

// ─────────────────────────────────────────────────────────────────────────────
// WRITES
// ─────────────────────────────────────────────────────────────────────────────

// Insert appends the event to the log. A retried submission with the same
// (user_id, dedup_key) hits the unique constraint; in that case the stored
// event is returned with duplicate=true and nothing is written.
func (r *EventRepository) Insert(ctx context.Context, ev *event.ActivityEvent) (*event.ActivityEvent, bool, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal payload: %w", err)
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO activity_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, dedup_key) DO NOTHING
	`,
		ev.ID,
		ev.UserID.String(),
		ev.Type.String(),
		payload,
		ev.Score,
		ev.OccurredAt,
		ev.DedupKey,
		ev.RecordedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert event: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return ev, false, nil
	}

	// Conflict: return the previously stored event.
	stored, err := r.getByDedupKey(ctx, ev.UserID, ev.DedupKey)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// READS
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns the event with the given ID, or event.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.ActivityEvent, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM activity_events
		WHERE id = $1
	`, id)

	ev, err := scanEvent(row)
	if IsNoRows(err) {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) getByDedupKey(ctx context.Context, userID event.UserID, key string) (*event.ActivityEvent, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM activity_events
		WHERE user_id = $1 AND dedup_key = $2
	`, userID.String(), key)

	ev, err := scanEvent(row)
	if IsNoRows(err) {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event by dedup key: %w", err)
	}
	return ev, nil
}

// ListByUser returns the user's events of the given types inside the
// window, ordered by occurrence time ascending. Empty types means all.
func (r *EventRepository) ListByUser(ctx context.Context, userID event.UserID, types []event.Type, w event.Window) ([]*event.ActivityEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM activity_events
		WHERE user_id = $1
	`
	args := []interface{}{userID.String()}

	if len(types) > 0 {
		strs := make([]string, len(types))
		for i, t := range types {
			strs[i] = t.String()
		}
		args = append(args, strs)
		query += fmt.Sprintf(" AND event_type = ANY($%d)", len(args))
	}
	query, args = appendWindow(query, args, w)
	query += " ORDER BY occurred_at ASC"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*event.ActivityEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// AGGREGATES
// ─────────────────────────────────────────────────────────────────────────────

// CountByType returns how many events of the type the user has in the window.
func (r *EventRepository) CountByType(ctx context.Context, userID event.UserID, typ event.Type, w event.Window) (int64, error) {
	query := `SELECT COUNT(*) FROM activity_events WHERE user_id = $1 AND event_type = $2`
	args := []interface{}{userID.String(), typ.String()}
	query, args = appendWindow(query, args, w)

	var n int64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// SumCountByTypes returns the total number of the user's events of the
// given types in the window.
func (r *EventRepository) SumCountByTypes(ctx context.Context, userID event.UserID, types []event.Type, w event.Window) (int64, error) {
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = t.String()
	}

	query := `SELECT COUNT(*) FROM activity_events WHERE user_id = $1 AND event_type = ANY($2)`
	args := []interface{}{userID.String(), strs}
	query, args = appendWindow(query, args, w)

	var n int64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// AverageScore returns the mean score over the user's scored events of the
// type in the window. ok is false when there are none.
func (r *EventRepository) AverageScore(ctx context.Context, userID event.UserID, typ event.Type, w event.Window) (float64, bool, error) {
	query := `
		SELECT AVG(score)
		FROM activity_events
		WHERE user_id = $1 AND event_type = $2 AND score IS NOT NULL
	`
	args := []interface{}{userID.String(), typ.String()}
	query, args = appendWindow(query, args, w)

	var avg *float64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&avg); err != nil {
		return 0, false, fmt.Errorf("failed to compute average score: %w", err)
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

// HighestScore returns the maximum score over the user's scored events of
// the type in the window. ok is false when there are none.
func (r *EventRepository) HighestScore(ctx context.Context, userID event.UserID, typ event.Type, w event.Window) (float64, bool, error) {
	query := `
		SELECT MAX(score)
		FROM activity_events
		WHERE user_id = $1 AND event_type = $2 AND score IS NOT NULL
	`
	args := []interface{}{userID.String(), typ.String()}
	query, args = appendWindow(query, args, w)

	var max *float64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("failed to compute highest score: %w", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

// DistinctDaysActive returns how many distinct UTC days in the window hold
// at least one event of the user.
func (r *EventRepository) DistinctDaysActive(ctx context.Context, userID event.UserID, w event.Window) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT (occurred_at AT TIME ZONE 'UTC')::date)
		FROM activity_events
		WHERE user_id = $1
	`
	args := []interface{}{userID.String()}
	query, args = appendWindow(query, args, w)

	var n int64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active days: %w", err)
	}
	return n, nil
}

// LastEventAt returns the occurrence time of the user's most recent event
// in the window, across all types.
func (r *EventRepository) LastEventAt(ctx context.Context, userID event.UserID, w event.Window) (time.Time, bool, error) {
	query := `SELECT MAX(occurred_at) FROM activity_events WHERE user_id = $1`
	args := []interface{}{userID.String()}
	query, args = appendWindow(query, args, w)

	var at *time.Time
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&at); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last event time: %w", err)
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return at.UTC(), true, nil
}

// ActiveUsers returns the distinct user IDs with at least one event in the window.
func (r *EventRepository) ActiveUsers(ctx context.Context, w event.Window) ([]event.UserID, error) {
	query := `SELECT DISTINCT user_id FROM activity_events WHERE TRUE`
	args := []interface{}{}
	query, args = appendWindow(query, args, w)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []event.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		users = append(users, event.UserID(id))
	}
	return users, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// appendWindow adds half-open [start, end) bounds to a query. A zero bound
// imposes no condition.
func appendWindow(query string, args []interface{}, w event.Window) (string, []interface{}) {
	if !w.Start.IsZero() {
		args = append(args, w.Start)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !w.End.IsZero() {
		args = append(args, w.End)
		query += fmt.Sprintf(" AND occurred_at < $%d", len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*event.ActivityEvent, error) {
	var (
		ev      event.ActivityEvent
		userID  string
		typ     string
		payload []byte
	)

	err := row.Scan(
		&ev.ID,
		&userID,
		&typ,
		&payload,
		&ev.Score,
		&ev.OccurredAt,
		&ev.DedupKey,
		&ev.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.UserID = event.UserID(userID)
	ev.Type = event.Type(typ)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	ev.RecordedAt = ev.RecordedAt.UTC()
	return &ev, nil
}
