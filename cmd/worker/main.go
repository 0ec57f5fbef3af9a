// Package main is the entry point of the achievement engine worker.
//
// The worker owns the engine's background life: it applies schema
// migrations on startup, runs the periodic leaderboard recomputation and
// seeds the badge catalog. The command and query handlers it wires are
// the same ones an API layer would embed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skillforge-hub/achievement-engine/config"
	"github.com/skillforge-hub/achievement-engine/internal/application"
	"github.com/skillforge-hub/achievement-engine/internal/application/command"
	"github.com/skillforge-hub/achievement-engine/internal/application/query"
	"github.com/skillforge-hub/achievement-engine/internal/catalog"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/messaging"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence/postgres"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/persistence/redis"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/scheduler"
	"github.com/skillforge-hub/achievement-engine/internal/infrastructure/scheduler/jobs"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.App.LogLevel),
		AddCaller: true,
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)

	log.Info("starting worker", logger.String("version", cfg.App.Version))

	// ─────────────────────────────────────────────────────────────────────────
	// STORAGE
	// ─────────────────────────────────────────────────────────────────────────

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return err
	}
	log.Info("migrations applied")

	var (
		cache      *redis.Cache
		snapCache  command.SnapshotCache = command.NopSnapshotCache{}
		snapReader query.SnapshotReader
		cooldown   command.CooldownStore = command.NopCooldown{}
		locker     jobs.JobLocker
		lockErr    error
	)
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(ctx, redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer cache.Close()

		lbCache := redis.NewLeaderboardCacheWithTTL(cache, cfg.Leaderboard.CacheTTL)
		snapCache = lbCache
		snapReader = lbCache
		cooldown = redis.NewCooldownStore(cache)
		locker = cache
		lockErr = redis.ErrLockHeld
		log.Info("redis connected", logger.String("addr", cfg.Redis.Host))
	} else {
		log.Warn("redis disabled, running without cache and job lock")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// WIRING
	// ─────────────────────────────────────────────────────────────────────────

	eventRepo := postgres.NewEventRepository(conn)
	badgeRepo := postgres.NewBadgeRepository(conn)
	awardRepo := postgres.NewAwardRepository(conn)
	streakRepo := postgres.NewStreakRepository(conn)
	lbRepo := postgres.NewLeaderboardRepository(conn)

	if err := catalog.Seed(ctx, badgeRepo); err != nil {
		return err
	}
	log.Info("badge catalog seeded")

	bus := messaging.NewEventBus(messaging.EventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         log,
	})
	defer func() {
		if err := bus.Close(5 * time.Second); err != nil {
			log.Warn("event bus shutdown", logger.Err(err))
		}
	}()

	// The worker builds the same handler bundle an API server embeds; the
	// scheduler below drives its leaderboard side.
	handlers := application.New(application.Dependencies{
		Events:     eventRepo,
		Aggregates: eventRepo,

		Badges:  badgeRepo,
		Awards:  awardRepo,
		Source:  persistence.NewCriteriaSource(eventRepo, streakRepo, nil),
		Streaks: streakRepo,
		Goals:   postgres.NewGoalRepository(conn),

		Stats:     lbRepo,
		Snapshots: lbRepo,
		Weights:   cfg.Leaderboard.Weights(),

		SnapshotCache:  snapCache,
		SnapshotReader: snapReader,
		Cooldown:       cooldown,

		Publisher: bus,
		Logger:    log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────

	sched := scheduler.NewScheduler(log)

	if cfg.Scheduler.Enabled {
		job := jobs.NewComputeLeaderboardJob(handlers.ComputeLeaderboard, locker, lockErr, log)
		if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.ComputeInterval)); err != nil {
			return err
		}

		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler shutdown", logger.Err(err))
			}
		}()

		// Warm the snapshots immediately instead of waiting a full interval.
		if _, err := sched.RunNow(ctx, job.Name()); err != nil {
			log.Warn("initial leaderboard computation failed", logger.Err(err))
		}
	}

	log.Info("worker ready")
	<-ctx.Done()
	log.Info("shutting down", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	return nil
}
