// Package catalog holds the built-in badge definitions and seeds them
// into storage on worker startup. Seeding is an upsert: redeploying with
// a changed definition updates the stored catalog in place, and badges
// removed from the list stay in storage but can be deactivated there.
package catalog

import (
	"context"
	"fmt"

	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
)

// Defaults returns the built-in badge catalog.
func Defaults() []*badge.Badge {
	return []*badge.Badge{
		// ─── learning ────────────────────────────────────────────────────────
		{
			ID:          "first-lesson",
			Name:        "First Steps",
			Description: "Complete your first lesson",
			Category:    badge.CategoryLearning,
			Tier:        badge.TierBronze,
			Rarity:      badge.RarityCommon,
			Points:      10,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypeLessonComplete},
				Threshold:  1,
			},
		},
		{
			ID:          "lesson-marathon",
			Name:        "Marathon Learner",
			Description: "Complete 50 lessons",
			Category:    badge.CategoryLearning,
			Tier:        badge.TierSilver,
			Rarity:      badge.RarityCommon,
			Points:      50,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypeLessonComplete},
				Threshold:  50,
			},
		},
		{
			ID:          "lesson-centurion",
			Name:        "Centurion",
			Description: "Complete 100 lessons",
			Category:    badge.CategoryLearning,
			Tier:        badge.TierGold,
			Rarity:      badge.RarityRare,
			Points:      100,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypeLessonComplete},
				Threshold:  100,
			},
		},
		{
			ID:          "busy-week",
			Name:        "Busy Week",
			Description: "Complete 10 lessons within seven days",
			Category:    badge.CategoryLearning,
			Tier:        badge.TierSilver,
			Rarity:      badge.RarityCommon,
			Points:      30,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypeLessonComplete},
				Threshold:  10,
				Window:     badge.WindowSpec{Scope: badge.ScopeRolling, Days: 7},
			},
		},

		// ─── assessment ──────────────────────────────────────────────────────
		{
			ID:          "sharpshooter",
			Name:        "Sharpshooter",
			Description: "Score 100 on any test",
			Category:    badge.CategoryAssessment,
			Tier:        badge.TierGold,
			Rarity:      badge.RarityRare,
			Points:      75,
			Active:      true,
			Criteria: &badge.ScoreThreshold{
				EventType: event.TypeTestAttempt,
				Metric:    badge.MetricHighest,
				Threshold: 100,
			},
		},
		{
			ID:          "consistent-performer",
			Name:        "Consistent Performer",
			Description: "Keep a test average of 80 or higher over at least 10 attempts",
			Category:    badge.CategoryAssessment,
			Tier:        badge.TierGold,
			Rarity:      badge.RarityEpic,
			Points:      100,
			Active:      true,
			Criteria: &badge.ScoreThreshold{
				EventType:   event.TypeTestAttempt,
				Metric:      badge.MetricAverage,
				Threshold:   80,
				MinAttempts: 10,
			},
		},
		{
			ID:          "bug-squasher",
			Name:        "Bug Squasher",
			Description: "Submit 25 bugfix attempts",
			Category:    badge.CategoryAssessment,
			Tier:        badge.TierSilver,
			Rarity:      badge.RarityCommon,
			Points:      40,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypeBugfixAttempt},
				Threshold:  25,
			},
		},
		{
			ID:          "live-wire",
			Name:        "Live Wire",
			Description: "Score 90 or higher on a live coding session",
			Category:    badge.CategoryAssessment,
			Tier:        badge.TierPlatinum,
			Rarity:      badge.RarityLegendary,
			Points:      150,
			Active:      true,
			Criteria: &badge.ScoreThreshold{
				EventType: event.TypeLiveCodingAttempt,
				Metric:    badge.MetricHighest,
				Threshold: 90,
			},
		},

		// ─── streak ──────────────────────────────────────────────────────────
		{
			ID:          "week-streak",
			Name:        "One Week In",
			Description: "Stay active seven days in a row",
			Category:    badge.CategoryStreak,
			Tier:        badge.TierBronze,
			Rarity:      badge.RarityCommon,
			Points:      20,
			Active:      true,
			Criteria:    &badge.Streak{Days: 7},
		},
		{
			ID:          "month-streak",
			Name:        "Iron Habit",
			Description: "Stay active thirty days in a row",
			Category:    badge.CategoryStreak,
			Tier:        badge.TierGold,
			Rarity:      badge.RarityRare,
			Points:      120,
			Active:      true,
			Criteria:    &badge.Streak{Days: 30},
		},
		{
			ID:          "hundred-streak",
			Name:        "Unstoppable",
			Description: "Stay active one hundred days in a row",
			Category:    badge.CategoryStreak,
			Tier:        badge.TierPlatinum,
			Rarity:      badge.RarityLegendary,
			Points:      300,
			Active:      true,
			Criteria:    &badge.Streak{Days: 100},
		},

		// ─── community ───────────────────────────────────────────────────────
		{
			ID:          "community-voice",
			Name:        "Community Voice",
			Description: "Earn 100 engagement points from likes, comments and follows",
			Category:    badge.CategoryCommunity,
			Tier:        badge.TierSilver,
			Rarity:      badge.RarityRare,
			Points:      50,
			Active:      true,
			Criteria: &badge.CompositeTotal{
				Parts: []badge.WeightedPart{
					{EventType: event.TypePostLike, Weight: 1},
					{EventType: event.TypePostComment, Weight: 3},
					{EventType: event.TypeFollow, Weight: 2},
				},
				Threshold: 100,
			},
		},
		{
			ID:          "conversation-starter",
			Name:        "Conversation Starter",
			Description: "Leave 20 comments",
			Category:    badge.CategoryCommunity,
			Tier:        badge.TierBronze,
			Rarity:      badge.RarityCommon,
			Points:      15,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypePostComment},
				Threshold:  20,
			},
		},

		// ─── career ──────────────────────────────────────────────────────────
		{
			ID:          "job-hunter",
			Name:        "Job Hunter",
			Description: "Apply to 10 job postings",
			Category:    badge.CategoryCareer,
			Tier:        badge.TierBronze,
			Rarity:      badge.RarityCommon,
			Points:      25,
			Active:      true,
			Criteria: &badge.CumulativeCount{
				EventTypes: []event.Type{event.TypeJobApplication},
				Threshold:  10,
			},
		},
	}
}

// Seed upserts the built-in catalog into the repository.
func Seed(ctx context.Context, repo badge.Repository) error {
	for _, b := range Defaults() {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("catalog: badge %s: %w", b.ID, err)
		}
		if err := repo.Upsert(ctx, b); err != nil {
			return fmt.Errorf("catalog: badge %s: %w", b.ID, err)
		}
	}
	return nil
}
