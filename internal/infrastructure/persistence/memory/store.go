// Package memory provides in-memory implementations of the engine's
// repositories. They mirror the PostgreSQL semantics, including the
// uniqueness guarantees, and back the application-level tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
	"github.com/skillforge-hub/achievement-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT STORE
// ══════════════════════════════════════════════════════════════════════════════

// EventStore implements event.Repository and event.AggregateReader.
type EventStore struct {
	mu     sync.RWMutex
	events []*event.ActivityEvent
	byKey  map[string]*event.ActivityEvent // userID + "\x00" + dedupKey
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{byKey: make(map[string]*event.ActivityEvent)}
}

func dedupIndex(userID event.UserID, key string) string {
	return userID.String() + "\x00" + key
}

// Insert appends the event, or returns the stored duplicate.
func (s *EventStore) Insert(_ context.Context, ev *event.ActivityEvent) (*event.ActivityEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := dedupIndex(ev.UserID, ev.DedupKey)
	if stored, ok := s.byKey[idx]; ok {
		return stored, true, nil
	}

	cp := *ev
	s.events = append(s.events, &cp)
	s.byKey[idx] = &cp
	return &cp, false, nil
}

// GetByID returns the event with the given ID, or event.ErrNotFound.
func (s *EventStore) GetByID(_ context.Context, id string) (*event.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return nil, event.ErrNotFound
}

// ListByUser returns the user's matching events ordered by occurrence time.
func (s *EventStore) ListByUser(_ context.Context, userID event.UserID, types []event.Type, w event.Window) ([]*event.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[event.Type]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	var out []*event.ActivityEvent
	for _, ev := range s.events {
		if ev.UserID != userID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[ev.Type] {
			continue
		}
		if !w.Contains(ev.OccurredAt) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// CountByType returns how many events of the type the user has in the window.
func (s *EventStore) CountByType(_ context.Context, userID event.UserID, typ event.Type, w event.Window) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, ev := range s.events {
		if ev.UserID == userID && ev.Type == typ && w.Contains(ev.OccurredAt) {
			n++
		}
	}
	return n, nil
}

// SumCountByTypes returns the total count over the given types.
func (s *EventStore) SumCountByTypes(ctx context.Context, userID event.UserID, types []event.Type, w event.Window) (int64, error) {
	var total int64
	for _, t := range types {
		n, err := s.CountByType(ctx, userID, t, w)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// AverageScore returns the mean score over scored events in the window.
func (s *EventStore) AverageScore(_ context.Context, userID event.UserID, typ event.Type, w event.Window) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	var n int64
	for _, ev := range s.events {
		if ev.UserID == userID && ev.Type == typ && ev.Score != nil && w.Contains(ev.OccurredAt) {
			sum += *ev.Score
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

// HighestScore returns the max score over scored events in the window.
func (s *EventStore) HighestScore(_ context.Context, userID event.UserID, typ event.Type, w event.Window) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best float64
	found := false
	for _, ev := range s.events {
		if ev.UserID == userID && ev.Type == typ && ev.Score != nil && w.Contains(ev.OccurredAt) {
			if !found || *ev.Score > best {
				best = *ev.Score
			}
			found = true
		}
	}
	return best, found, nil
}

// DistinctDaysActive returns how many distinct UTC days in the window hold
// at least one event of the user.
func (s *EventStore) DistinctDaysActive(_ context.Context, userID event.UserID, w event.Window) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make(map[string]bool)
	for _, ev := range s.events {
		if ev.UserID == userID && w.Contains(ev.OccurredAt) {
			days[ev.OccurredAt.UTC().Format("2006-01-02")] = true
		}
	}
	return int64(len(days)), nil
}

// LastEventAt returns the user's latest occurrence time in the window.
func (s *EventStore) LastEventAt(_ context.Context, userID event.UserID, w event.Window) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	found := false
	for _, ev := range s.events {
		if ev.UserID == userID && w.Contains(ev.OccurredAt) && ev.OccurredAt.After(last) {
			last = ev.OccurredAt
			found = true
		}
	}
	return last, found, nil
}

// ActiveUsers returns the distinct users with at least one event in the window.
func (s *EventStore) ActiveUsers(_ context.Context, w event.Window) ([]event.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[event.UserID]bool)
	var users []event.UserID
	for _, ev := range s.events {
		if w.Contains(ev.OccurredAt) && !seen[ev.UserID] {
			seen[ev.UserID] = true
			users = append(users, ev.UserID)
		}
	}
	return users, nil
}

// CollectStats implements leaderboard.StatsSource over the event log.
func (s *EventStore) CollectStats(_ context.Context, w event.Window) ([]leaderboard.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		count    int64
		scoreSum float64
		scoreN   int64
		highest  float64
		last     time.Time
	}
	accs := make(map[event.UserID]*acc)

	for _, ev := range s.events {
		if !w.Contains(ev.OccurredAt) {
			continue
		}
		a := accs[ev.UserID]
		if a == nil {
			a = &acc{}
			accs[ev.UserID] = a
		}
		a.count++
		if ev.Score != nil {
			a.scoreSum += *ev.Score
			a.scoreN++
			if *ev.Score > a.highest {
				a.highest = *ev.Score
			}
		}
		if ev.OccurredAt.After(a.last) {
			a.last = ev.OccurredAt
		}
	}

	stats := make([]leaderboard.UserStats, 0, len(accs))
	for id, a := range accs {
		st := leaderboard.UserStats{
			UserID:       id,
			EventCount:   a.count,
			HighestScore: a.highest,
			LastEventAt:  a.last,
		}
		if a.scoreN > 0 {
			st.AverageScore = a.scoreSum / float64(a.scoreN)
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })
	return stats, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE STORES
// ══════════════════════════════════════════════════════════════════════════════

// BadgeStore implements badge.Repository.
type BadgeStore struct {
	mu     sync.RWMutex
	badges map[badge.ID]*badge.Badge
}

// NewBadgeStore creates an empty BadgeStore.
func NewBadgeStore() *BadgeStore {
	return &BadgeStore{badges: make(map[badge.ID]*badge.Badge)}
}

// GetByID returns the badge, or badge.ErrNotFound.
func (s *BadgeStore) GetByID(_ context.Context, id badge.ID) (*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.badges[id]
	if !ok {
		return nil, badge.ErrNotFound
	}
	return b, nil
}

// ListActive returns all active badges ordered by category then tier.
func (s *BadgeStore) ListActive(_ context.Context) ([]*badge.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*badge.Badge
	for _, b := range s.badges {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Tier.Weight() != out[j].Tier.Weight() {
			return out[i].Tier.Weight() < out[j].Tier.Weight()
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Upsert inserts or replaces a badge definition.
func (s *BadgeStore) Upsert(_ context.Context, b *badge.Badge) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges[b.ID] = b
	return nil
}

// AwardStore implements badge.AwardRepository.
type AwardStore struct {
	mu     sync.RWMutex
	awards map[string]*badge.UserBadge // userID + "\x00" + badgeID
}

// NewAwardStore creates an empty AwardStore.
func NewAwardStore() *AwardStore {
	return &AwardStore{awards: make(map[string]*badge.UserBadge)}
}

func awardIndex(userID event.UserID, badgeID badge.ID) string {
	return userID.String() + "\x00" + badgeID.String()
}

// Award records the earned badge or returns badge.ErrAlreadyAwarded.
func (s *AwardStore) Award(_ context.Context, ub *badge.UserBadge) (*badge.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := awardIndex(ub.UserID, ub.BadgeID)
	if stored, ok := s.awards[idx]; ok {
		return stored, badge.ErrAlreadyAwarded
	}
	cp := *ub
	s.awards[idx] = &cp
	return &cp, nil
}

// ListByUser returns the user's awards ordered by earn time.
func (s *AwardStore) ListByUser(_ context.Context, userID event.UserID) ([]*badge.UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*badge.UserBadge
	for _, ub := range s.awards {
		if ub.UserID == userID {
			out = append(out, ub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

// Has reports whether the user already earned the badge.
func (s *AwardStore) Has(_ context.Context, userID event.UserID, badgeID badge.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.awards[awardIndex(userID, badgeID)]
	return ok, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK STORES
// ══════════════════════════════════════════════════════════════════════════════

// StreakStore implements streak.Repository.
type StreakStore struct {
	mu      sync.RWMutex
	streaks map[event.UserID]*streak.UserStreak
}

// NewStreakStore creates an empty StreakStore.
func NewStreakStore() *StreakStore {
	return &StreakStore{streaks: make(map[event.UserID]*streak.UserStreak)}
}

// Get returns the user's streak, or streak.ErrNotFound.
func (s *StreakStore) Get(_ context.Context, userID event.UserID) (*streak.UserStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streaks[userID]
	if !ok {
		return nil, streak.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// Save upserts the streak state.
func (s *StreakStore) Save(_ context.Context, st *streak.UserStreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.streaks[st.UserID] = &cp
	return nil
}

// GoalStore implements streak.GoalRepository.
type GoalStore struct {
	mu    sync.RWMutex
	goals map[string]*streak.DailyGoal // userID + "\x00" + day + "\x00" + type
}

// NewGoalStore creates an empty GoalStore.
func NewGoalStore() *GoalStore {
	return &GoalStore{goals: make(map[string]*streak.DailyGoal)}
}

func goalIndex(userID event.UserID, day time.Time, typ streak.GoalType) string {
	return userID.String() + "\x00" + timeutil.DayLabel(day) + "\x00" + typ.String()
}

// MarkCompleted flips the cell, reporting whether this call did the flip.
func (s *GoalStore) MarkCompleted(_ context.Context, userID event.UserID, day time.Time, typ streak.GoalType, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := goalIndex(userID, day, typ)
	if g, ok := s.goals[idx]; ok && g.Completed {
		return false, nil
	}
	s.goals[idx] = &streak.DailyGoal{
		UserID:      userID,
		Day:         timeutil.StartOfDay(day),
		Type:        typ,
		Completed:   true,
		CompletedAt: at,
	}
	return true, nil
}

// ListForDay returns the user's goal cells for the UTC day.
func (s *GoalStore) ListForDay(_ context.Context, userID event.UserID, day time.Time) ([]*streak.DailyGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := timeutil.StartOfDay(day)
	var out []*streak.DailyGoal
	for _, g := range s.goals {
		if g.UserID == userID && g.Day.Equal(d) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD STORE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardStore implements leaderboard.Repository.
type LeaderboardStore struct {
	mu        sync.RWMutex
	snapshots map[string]*leaderboard.Snapshot // period + "\x00" + label
}

// NewLeaderboardStore creates an empty LeaderboardStore.
func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{snapshots: make(map[string]*leaderboard.Snapshot)}
}

func snapshotIndex(period leaderboard.Period, label string) string {
	return period.String() + "\x00" + label
}

// Replace swaps the stored snapshot for the pair.
func (s *LeaderboardStore) Replace(_ context.Context, snap *leaderboard.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotIndex(snap.Period, snap.PeriodLabel)] = snap
	return nil
}

// GetSnapshot returns the stored snapshot, or leaderboard.ErrNotFound.
func (s *LeaderboardStore) GetSnapshot(_ context.Context, period leaderboard.Period, label string) (*leaderboard.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapshotIndex(period, label)]
	if !ok {
		return nil, leaderboard.ErrNotFound
	}
	return snap, nil
}

// GetEntry returns one user's entry in the pair, or leaderboard.ErrNotFound.
func (s *LeaderboardStore) GetEntry(ctx context.Context, period leaderboard.Period, label string, userID event.UserID) (*leaderboard.Entry, error) {
	snap, err := s.GetSnapshot(ctx, period, label)
	if err != nil {
		return nil, err
	}
	if e := snap.Find(userID.String()); e != nil {
		return e, nil
	}
	return nil, leaderboard.ErrNotFound
}

// Top returns the first n entries of the pair.
func (s *LeaderboardStore) Top(ctx context.Context, period leaderboard.Period, label string, n int) ([]*leaderboard.Entry, error) {
	snap, err := s.GetSnapshot(ctx, period, label)
	if errors.Is(err, leaderboard.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Top(n), nil
}
