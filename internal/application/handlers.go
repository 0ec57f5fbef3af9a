// Package application bundles the engine's command and query handlers
// behind one constructor so every entry point (the worker, an embedding
// API server, tests) wires the same graph.
package application

import (
	"github.com/skillforge-hub/achievement-engine/internal/application/command"
	"github.com/skillforge-hub/achievement-engine/internal/application/query"
	"github.com/skillforge-hub/achievement-engine/internal/domain/badge"
	"github.com/skillforge-hub/achievement-engine/internal/domain/event"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/internal/domain/shared"
	"github.com/skillforge-hub/achievement-engine/internal/domain/streak"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

// Dependencies carries the stores and services the handler graph is built
// on. Events and Aggregates are usually the same store, split here because
// the read side only needs the aggregate queries. SnapshotCache,
// SnapshotReader, Cooldown, Publisher and Logger may be nil; the handlers
// fall back to no-ops.
type Dependencies struct {
	Events     event.Repository
	Aggregates event.AggregateReader

	Badges  badge.Repository
	Awards  badge.AwardRepository
	Source  badge.Source
	Streaks streak.Repository
	Goals   streak.GoalRepository

	Stats     leaderboard.StatsSource
	Snapshots leaderboard.Repository
	Weights   leaderboard.ScoreWeights

	SnapshotCache  command.SnapshotCache
	SnapshotReader query.SnapshotReader
	Cooldown       command.CooldownStore

	Publisher shared.EventPublisher
	Logger    *logger.Logger
}

// Handlers is the engine's full command and query surface.
type Handlers struct {
	RecordEvent        *command.RecordEventHandler
	EvaluateBadges     *command.EvaluateBadgesHandler
	ComputeLeaderboard *command.ComputeLeaderboardHandler

	GetLeaderboard   *query.GetLeaderboardHandler
	GetUserRank      *query.GetUserRankHandler
	GetBadgeProgress *query.GetBadgeProgressHandler
	GetDailyProgress *query.GetDailyProgressHandler
}

// New builds the handler graph. The evaluator inside RecordEvent is the
// same instance exposed as EvaluateBadges, so scheduled and event-driven
// evaluation share one per-user serialization domain.
func New(d Dependencies) *Handlers {
	evaluate := command.NewEvaluateBadgesHandler(
		d.Badges, d.Awards, d.Source, nil, d.Cooldown, d.Publisher, d.Logger,
	)

	return &Handlers{
		RecordEvent: command.NewRecordEventHandler(
			d.Events, d.Streaks, d.Goals, evaluate, d.Publisher, d.Logger,
		),
		EvaluateBadges: evaluate,
		ComputeLeaderboard: command.NewComputeLeaderboardHandler(
			d.Stats, d.Snapshots, d.SnapshotCache, d.Weights, d.Publisher, d.Logger,
		),
		GetLeaderboard:   query.NewGetLeaderboardHandler(d.Snapshots, d.SnapshotReader, d.Logger),
		GetUserRank:      query.NewGetUserRankHandler(d.Snapshots, d.SnapshotReader, d.Logger),
		GetBadgeProgress: query.NewGetBadgeProgressHandler(d.Badges, d.Awards, d.Source, d.Logger),
		GetDailyProgress: query.NewGetDailyProgressHandler(d.Streaks, d.Goals, d.Awards, d.Aggregates, d.Logger),
	}
}
