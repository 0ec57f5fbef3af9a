package command

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence/memory"
)

type recordFixture struct {
	handler *RecordEventHandler
	events  *memory.EventStore
	badges  *memory.BadgeStore
	awards  *memory.AwardStore
	streaks *memory.StreakStore
	goals   *memory.GoalStore
}

func newRecordFixture(t *testing.T, now time.Time) *recordFixture {
	return newRecordFixtureWithCooldown(t, now, nil)
}

func newRecordFixtureWithCooldown(t *testing.T, now time.Time, cooldown CooldownStore) *recordFixture {
	t.Helper()

	f := &recordFixture{
		events:  memory.NewEventStore(),
		badges:  memory.NewBadgeStore(),
		awards:  memory.NewAwardStore(),
		streaks: memory.NewStreakStore(),
		goals:   memory.NewGoalStore(),
	}

	source := persistence.NewCriteriaSource(f.events, f.streaks, func() time.Time { return now })
	evaluator := NewEvaluateBadgesHandler(f.badges, f.awards, source, nil, cooldown, nil, nil)
	f.handler = NewRecordEventHandler(f.events, f.streaks, f.goals, evaluator, nil, nil)
	return f
}

// markerCooldown grants the first acquisition of each pair and refuses
// repeats, like a SETNX-backed store inside its TTL.
type markerCooldown struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (c *markerCooldown) Acquire(_ context.Context, userID event.UserID, badgeID badge.ID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	key := userID.String() + "|" + badgeID.String()
	if c.seen[key] {
		return false, nil
	}
	c.seen[key] = true
	return true, nil
}

// rmwGuardStreakStore flags the test when two streak read-modify-write
// sections for the same user overlap. The sleep widens the window so an
// unserialized handler reliably trips it.
type rmwGuardStreakStore struct {
	*memory.StreakStore
	active     int32
	overlapped int32
}

func (s *rmwGuardStreakStore) Get(ctx context.Context, userID event.UserID) (*streak.UserStreak, error) {
	if !atomic.CompareAndSwapInt32(&s.active, 0, 1) {
		atomic.StoreInt32(&s.overlapped, 1)
	}
	st, err := s.StreakStore.Get(ctx, userID)
	time.Sleep(2 * time.Millisecond)
	atomic.StoreInt32(&s.active, 0)
	return st, err
}

var recordedAt = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

func TestRecordEventStoresAndAdvances(t *testing.T) {
	f := newRecordFixture(t, recordedAt)

	res, err := f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypeLessonComplete,
		Payload:    event.Payload{"lesson_slug": "go-basics"},
		OccurredAt: recordedAt,
	})

	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.StreakCurrent)
	assert.Equal(t, 1, res.StreakLongest)
	assert.True(t, res.GoalCompleted)
	assert.NotEmpty(t, res.Event.ID)
}

func TestRecordEventDuplicateHasNoSideEffects(t *testing.T) {
	f := newRecordFixture(t, recordedAt)

	cmd := RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypeTestAttempt,
		Payload:    event.Payload{"attempt_id": "att-1", "score": 90.0},
		OccurredAt: recordedAt,
	}

	first, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	// Replay the exact submission a day later: same attempt, same key.
	cmd.OccurredAt = recordedAt.AddDate(0, 0, 1)
	second, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Zero(t, second.StreakCurrent) // no streak movement on replay
	assert.False(t, second.GoalCompleted)
	assert.Empty(t, second.NewBadges)

	// Only the original landed in the log.
	n, err := f.events.CountByType(context.Background(), "user-1", event.TypeTestAttempt, event.AllTime())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRecordEventBuildsStreakAcrossDays(t *testing.T) {
	f := newRecordFixture(t, recordedAt.AddDate(0, 0, 2))

	for d := 0; d < 3; d++ {
		res, err := f.handler.Handle(context.Background(), RecordEventCommand{
			UserID:     "user-1",
			Type:       event.TypePostLike,
			Payload:    event.Payload{"target_id": "post-" + string(rune('a'+d))},
			OccurredAt: recordedAt.AddDate(0, 0, d),
		})
		require.NoError(t, err)
		assert.Equal(t, d+1, res.StreakCurrent)
	}
}

func TestRecordEventAwardsBadgeSynchronously(t *testing.T) {
	f := newRecordFixture(t, recordedAt)

	require.NoError(t, f.badges.Upsert(context.Background(), &badge.Badge{
		ID:       "first-lesson",
		Name:     "First Steps",
		Category: badge.CategoryLearning,
		Tier:     badge.TierBronze,
		Rarity:   badge.RarityCommon,
		Active:   true,
		Criteria: &badge.CumulativeCount{
			EventTypes: []event.Type{event.TypeLessonComplete},
			Threshold:  1,
		},
	}))

	res, err := f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypeLessonComplete,
		Payload:    event.Payload{"lesson_slug": "go-basics"},
		OccurredAt: recordedAt,
	})

	require.NoError(t, err)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, badge.ID("first-lesson"), res.NewBadges[0].BadgeID)
	assert.Equal(t, res.Event.ID, res.NewBadges[0].TriggerEventID)

	// The next lesson finds the badge already earned.
	res, err = f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypeLessonComplete,
		Payload:    event.Payload{"lesson_slug": "go-slices"},
		OccurredAt: recordedAt.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, res.NewBadges)
}

func TestRecordEventStreakBadgeSeesTodaysActivity(t *testing.T) {
	// The streak rule must observe the advancement caused by the very
	// event being recorded.
	f := newRecordFixture(t, recordedAt)

	require.NoError(t, f.badges.Upsert(context.Background(), &badge.Badge{
		ID:       "one-day",
		Name:     "Day One",
		Category: badge.CategoryStreak,
		Tier:     badge.TierBronze,
		Rarity:   badge.RarityCommon,
		Active:   true,
		Criteria: &badge.Streak{Days: 1},
	}))

	res, err := f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypeFollow,
		Payload:    event.Payload{"target_id": "user-2"},
		OccurredAt: recordedAt,
	})

	require.NoError(t, err)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, badge.ID("one-day"), res.NewBadges[0].BadgeID)
}

func TestRecordEventThresholdCrossingAwardIsImmediate(t *testing.T) {
	// Rapid events inside a cooldown window must still award the moment a
	// count rule's threshold is crossed.
	f := newRecordFixtureWithCooldown(t, recordedAt, &markerCooldown{})

	require.NoError(t, f.badges.Upsert(context.Background(), &badge.Badge{
		ID:       "three-lessons",
		Name:     "Three Lessons",
		Category: badge.CategoryLearning,
		Tier:     badge.TierBronze,
		Rarity:   badge.RarityCommon,
		Active:   true,
		Criteria: &badge.CumulativeCount{
			EventTypes: []event.Type{event.TypeLessonComplete},
			Threshold:  3,
			Window:     badge.WindowSpec{Scope: badge.ScopeCalendarDay},
		},
	}))

	var last *RecordEventResult
	for i, slug := range []string{"go-basics", "go-slices", "go-maps"} {
		res, err := f.handler.Handle(context.Background(), RecordEventCommand{
			UserID:     "user-1",
			Type:       event.TypeLessonComplete,
			Payload:    event.Payload{"lesson_slug": slug},
			OccurredAt: recordedAt.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		last = res
	}

	require.Len(t, last.NewBadges, 1)
	assert.Equal(t, badge.ID("three-lessons"), last.NewBadges[0].BadgeID)
}

func TestRecordEventSerializesStreakPerUser(t *testing.T) {
	events := memory.NewEventStore()
	streaks := memory.NewStreakStore()
	guard := &rmwGuardStreakStore{StreakStore: streaks}
	goals := memory.NewGoalStore()

	source := persistence.NewCriteriaSource(events, streaks, func() time.Time { return recordedAt })
	evaluator := NewEvaluateBadgesHandler(memory.NewBadgeStore(), memory.NewAwardStore(), source, nil, nil, nil, nil)
	handler := NewRecordEventHandler(events, guard, goals, evaluator, nil, nil)

	record := func(day time.Time, offset int) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := handler.Handle(context.Background(), RecordEventCommand{
					UserID:     "user-1",
					Type:       event.TypePostLike,
					Payload:    event.Payload{"target_id": fmt.Sprintf("post-%d", offset+i)},
					OccurredAt: day,
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
	}

	record(recordedAt, 0)
	record(recordedAt.AddDate(0, 0, 1), 8)

	assert.Zero(t, atomic.LoadInt32(&guard.overlapped),
		"streak updates for one user interleaved")

	st, err := streaks.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 2, st.Longest)
}

func TestRecordEventGoalFlipsOnce(t *testing.T) {
	f := newRecordFixture(t, recordedAt)

	first, err := f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypePostComment,
		Payload:    event.Payload{"comment_id": "c-1"},
		OccurredAt: recordedAt,
	})
	require.NoError(t, err)
	assert.True(t, first.GoalCompleted)

	second, err := f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypePostComment,
		Payload:    event.Payload{"comment_id": "c-2"},
		OccurredAt: recordedAt.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, second.GoalCompleted) // engage cell already flipped today
}

func TestRecordEventValidation(t *testing.T) {
	f := newRecordFixture(t, recordedAt)

	_, err := f.handler.Handle(context.Background(), RecordEventCommand{
		Type:    event.TypePostLike,
		Payload: event.Payload{"target_id": "p"},
	})
	assert.ErrorIs(t, err, event.ErrInvalidUserID)

	_, err = f.handler.Handle(context.Background(), RecordEventCommand{
		UserID: "user-1",
		Type:   "bogus",
	})
	assert.ErrorIs(t, err, event.ErrInvalidType)

	_, err = f.handler.Handle(context.Background(), RecordEventCommand{
		UserID:     "user-1",
		Type:       event.TypePostLike,
		Payload:    event.Payload{},
		OccurredAt: recordedAt,
	})
	assert.ErrorIs(t, err, event.ErrInvalidPayload)
}
