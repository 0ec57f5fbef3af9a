package badge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// stubSource is a fixed-answer Source for criteria tests.
type stubSource struct {
	counts  map[event.Type]int64
	average float64
	highest float64
	scored  bool
	streak  int

	// lastWindow captures the window of the most recent aggregate call.
	lastWindow event.Window
}

func (s *stubSource) CountByType(_ context.Context, _ event.UserID, typ event.Type, w event.Window) (int64, error) {
	s.lastWindow = w
	return s.counts[typ], nil
}

func (s *stubSource) SumCountByTypes(_ context.Context, _ event.UserID, types []event.Type, w event.Window) (int64, error) {
	s.lastWindow = w
	var total int64
	for _, t := range types {
		total += s.counts[t]
	}
	return total, nil
}

func (s *stubSource) AverageScore(_ context.Context, _ event.UserID, _ event.Type, w event.Window) (float64, bool, error) {
	s.lastWindow = w
	return s.average, s.scored, nil
}

func (s *stubSource) HighestScore(_ context.Context, _ event.UserID, _ event.Type, w event.Window) (float64, bool, error) {
	s.lastWindow = w
	return s.highest, s.scored, nil
}

func (s *stubSource) CurrentStreak(context.Context, event.UserID) (int, error) {
	return s.streak, nil
}

var evalNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCumulativeCountMet(t *testing.T) {
	src := &stubSource{counts: map[event.Type]int64{event.TypeLessonComplete: 10}}
	c := &CumulativeCount{EventTypes: []event.Type{event.TypeLessonComplete}, Threshold: 10}

	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.True(t, met)

	c.Threshold = 11
	met, err = c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.False(t, met)
}

func TestCumulativeCountSumsMultipleTypes(t *testing.T) {
	src := &stubSource{counts: map[event.Type]int64{
		event.TypePostLike:    3,
		event.TypePostComment: 4,
	}}
	c := &CumulativeCount{
		EventTypes: []event.Type{event.TypePostLike, event.TypePostComment},
		Threshold:  7,
	}

	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.True(t, met)

	cur, target, err := c.Progress(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.Equal(t, 7.0, cur)
	assert.Equal(t, 7.0, target)
}

func TestCumulativeCountRollingWindowResolution(t *testing.T) {
	src := &stubSource{counts: map[event.Type]int64{event.TypeLessonComplete: 1}}
	c := &CumulativeCount{
		EventTypes: []event.Type{event.TypeLessonComplete},
		Threshold:  1,
		Window:     WindowSpec{Scope: ScopeRolling, Days: 7},
	}

	_, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), src.lastWindow.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), src.lastWindow.End)
}

func TestScoreThresholdHighest(t *testing.T) {
	src := &stubSource{highest: 100, scored: true}
	c := &ScoreThreshold{EventType: event.TypeTestAttempt, Metric: MetricHighest, Threshold: 100}

	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.True(t, met)

	src.highest = 99.9
	met, err = c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.False(t, met)
}

func TestScoreThresholdAverageNeedsMinAttempts(t *testing.T) {
	src := &stubSource{
		counts:  map[event.Type]int64{event.TypeTestAttempt: 5},
		average: 95,
		scored:  true,
	}
	c := &ScoreThreshold{
		EventType:   event.TypeTestAttempt,
		Metric:      MetricAverage,
		Threshold:   80,
		MinAttempts: 10,
	}

	// Average is high enough, but the sample is too small.
	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.False(t, met)

	src.counts[event.TypeTestAttempt] = 10
	met, err = c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.True(t, met)
}

func TestScoreThresholdNoScoredEvents(t *testing.T) {
	src := &stubSource{scored: false}
	c := &ScoreThreshold{EventType: event.TypeTestAttempt, Metric: MetricHighest, Threshold: 50}

	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.False(t, met)

	cur, target, err := c.Progress(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cur)
	assert.Equal(t, 50.0, target)
}

func TestStreakCriteria(t *testing.T) {
	src := &stubSource{streak: 7}
	c := &Streak{Days: 7}

	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.True(t, met)

	src.streak = 6
	met, err = c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.False(t, met)

	cur, target, err := c.Progress(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.Equal(t, 6.0, cur)
	assert.Equal(t, 7.0, target)
}

func TestCompositeTotal(t *testing.T) {
	src := &stubSource{counts: map[event.Type]int64{
		event.TypePostLike:    10, // weight 1 -> 10
		event.TypePostComment: 5,  // weight 3 -> 15
	}}
	c := &CompositeTotal{
		Parts: []WeightedPart{
			{EventType: event.TypePostLike, Weight: 1},
			{EventType: event.TypePostComment, Weight: 3},
		},
		Threshold: 25,
	}

	met, err := c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.True(t, met)

	c.Threshold = 26
	met, err = c.Met(context.Background(), src, "u1", evalNow)
	require.NoError(t, err)
	assert.False(t, met)
}

func TestCriteriaValidation(t *testing.T) {
	assert.ErrorIs(t, (&CumulativeCount{Threshold: 1}).Validate(), ErrInvalidCriteria)
	assert.ErrorIs(t, (&CumulativeCount{
		EventTypes: []event.Type{event.TypeLessonComplete},
	}).Validate(), ErrInvalidCriteria)
	assert.ErrorIs(t, (&CumulativeCount{
		EventTypes: []event.Type{"bogus"}, Threshold: 1,
	}).Validate(), ErrInvalidCriteria)

	// score_threshold on a type that never carries a score
	assert.ErrorIs(t, (&ScoreThreshold{
		EventType: event.TypePostLike, Metric: MetricHighest, Threshold: 50,
	}).Validate(), ErrInvalidCriteria)

	assert.ErrorIs(t, (&Streak{Days: 0}).Validate(), ErrInvalidCriteria)

	assert.ErrorIs(t, (&CompositeTotal{
		Parts:     []WeightedPart{{EventType: event.TypePostLike, Weight: -1}},
		Threshold: 10,
	}).Validate(), ErrInvalidCriteria)

	assert.ErrorIs(t, WindowSpec{Scope: ScopeRolling}.Validate(), ErrInvalidCriteria)
	assert.ErrorIs(t, WindowSpec{Scope: "fortnight"}.Validate(), ErrInvalidCriteria)
	assert.NoError(t, WindowSpec{}.Validate())
}

func TestEncodeDecodeCriteria(t *testing.T) {
	original := &ScoreThreshold{
		EventType:   event.TypeTestAttempt,
		Metric:      MetricAverage,
		Threshold:   80,
		MinAttempts: 10,
		Window:      WindowSpec{Scope: ScopeRolling, Days: 30},
	}

	data, err := EncodeCriteria(original)
	require.NoError(t, err)

	decoded, err := DecodeCriteria(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeCriteriaRejectsUnknownKind(t *testing.T) {
	_, err := DecodeCriteria([]byte(`{"kind":"wishes","params":{}}`))
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestDecodeCriteriaRejectsInvalidParams(t *testing.T) {
	_, err := DecodeCriteria([]byte(`{"kind":"streak","params":{"days":0}}`))
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}
