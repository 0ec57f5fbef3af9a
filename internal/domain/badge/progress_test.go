package badge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

func progressBadge(threshold int64) *Badge {
	return &Badge{
		ID:       "lesson-badge",
		Name:     "Lessons",
		Category: CategoryLearning,
		Tier:     TierBronze,
		Rarity:   RarityCommon,
		Active:   true,
		Criteria: &CumulativeCount{
			EventTypes: []event.Type{event.TypeLessonComplete},
			Threshold:  threshold,
		},
	}
}

func TestComputeProgressPartial(t *testing.T) {
	src := &stubSource{counts: map[event.Type]int64{event.TypeLessonComplete: 25}}

	p, err := ComputeProgress(context.Background(), src, progressBadge(100), "u1", false, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 25.0, p.Current)
	assert.Equal(t, 100.0, p.Target)
	assert.Equal(t, 25.0, p.Percent)
	assert.False(t, p.Earned)
}

func TestComputeProgressClampsOver100(t *testing.T) {
	src := &stubSource{counts: map[event.Type]int64{event.TypeLessonComplete: 250}}

	p, err := ComputeProgress(context.Background(), src, progressBadge(100), "u1", false, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 250.0, p.Current)
	assert.Equal(t, 100.0, p.Percent)
}

func TestComputeProgressEarnedAlwaysFull(t *testing.T) {
	// An earned badge whose rolling-window aggregate has since dropped
	// still reports 100.
	src := &stubSource{counts: map[event.Type]int64{event.TypeLessonComplete: 2}}

	p, err := ComputeProgress(context.Background(), src, progressBadge(100), "u1", true, evalNow)
	require.NoError(t, err)

	assert.Equal(t, 2.0, p.Current)
	assert.Equal(t, 100.0, p.Percent)
	assert.True(t, p.Earned)
}
