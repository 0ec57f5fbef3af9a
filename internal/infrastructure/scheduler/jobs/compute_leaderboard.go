// Package jobs contains implementations of scheduled jobs for the
// achievement engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skillforge-hub/achievement-engine/internal/application/command"
	"github.com/skillforge-hub/achievement-engine/internal/domain/leaderboard"
	"github.com/skillforge-hub/achievement-engine/pkg/logger"
	"github.com/skillforge-hub/achievement-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE LEADERBOARD JOB
// Periodically recomputes the daily, weekly and monthly rankings. Exactly
// one worker computes at a time: the job takes a distributed lock first
// and silently yields when another instance holds it.
// ══════════════════════════════════════════════════════════════════════════════

// lockName is the shared lock key all worker instances contend on.
const lockName = "leaderboard:compute"

// JobLocker is the distributed lock the job takes before recomputing.
// Implemented by the Redis cache; a nil locker means single-instance
// deployment and skips locking.
type JobLocker interface {
	AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, name, holder string) error
}

// ErrLockHeld is what the locker returns when another worker owns the lock.
// Matched by errors.Is against the locker's sentinel.
var ErrLockHeld = errors.New("jobs: compute lock already held")

// ComputeLeaderboardJob recomputes all ranking periods.
type ComputeLeaderboardJob struct {
	handler *command.ComputeLeaderboardHandler
	locker  JobLocker
	lockErr error
	retrier *retry.Retrier
	log     *logger.Logger
	timeout time.Duration
}

// ComputeLeaderboardJobConfig contains configuration for the job.
type ComputeLeaderboardJobConfig struct {
	// LockTTL bounds how long a crashed worker's lock survives.
	LockTTL time.Duration

	// Timeout is the maximum duration for one full recomputation.
	Timeout time.Duration
}

// DefaultComputeLeaderboardJobConfig returns sensible defaults.
func DefaultComputeLeaderboardJobConfig() ComputeLeaderboardJobConfig {
	return ComputeLeaderboardJobConfig{
		LockTTL: 5 * time.Minute,
		Timeout: 4 * time.Minute,
	}
}

// NewComputeLeaderboardJob creates the job.
//
// lockErr is the sentinel the locker returns when the lock is taken
// (e.g. the Redis cache's ErrLockHeld); it lets the job distinguish
// "someone else is computing" from a real failure.
func NewComputeLeaderboardJob(
	handler *command.ComputeLeaderboardHandler,
	locker JobLocker,
	lockErr error,
	log *logger.Logger,
) *ComputeLeaderboardJob {
	if log == nil {
		log = logger.Default()
	}
	if lockErr == nil {
		lockErr = ErrLockHeld
	}
	cfg := DefaultComputeLeaderboardJobConfig()

	return &ComputeLeaderboardJob{
		handler: handler,
		locker:  locker,
		lockErr: lockErr,
		retrier: retry.RankingRetrier(),
		log:     log.With(logger.Component("compute_leaderboard_job")),
		timeout: cfg.Timeout,
	}
}

// Name implements scheduler.Job.
func (j *ComputeLeaderboardJob) Name() string {
	return "compute_leaderboard"
}

// Description implements scheduler.Job.
func (j *ComputeLeaderboardJob) Description() string {
	return "Recomputes daily, weekly and monthly ranking snapshots"
}

// Run implements scheduler.Job.
func (j *ComputeLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	holder := uuid.NewString()

	if j.locker != nil {
		err := j.locker.AcquireLock(ctx, lockName, holder, DefaultComputeLeaderboardJobConfig().LockTTL)
		if errors.Is(err, j.lockErr) {
			j.log.Info("another worker is computing, yielding")
			return nil
		}
		if err != nil {
			return fmt.Errorf("compute_leaderboard_job: %w", err)
		}
		defer func() {
			if err := j.locker.ReleaseLock(context.WithoutCancel(ctx), lockName, holder); err != nil {
				j.log.Warn("failed to release compute lock", logger.Err(err))
			}
		}()
	}

	now := time.Now().UTC()

	// Periods are independent; compute them in parallel. Each period is
	// retried on its own: recomputation is idempotent.
	g, gctx := errgroup.WithContext(ctx)
	for _, period := range leaderboard.AllPeriods() {
		period := period
		g.Go(func() error {
			return j.retrier.Do(gctx, func(ctx context.Context) error {
				_, err := j.handler.Handle(ctx, command.ComputeLeaderboardCommand{
					Period: period,
					At:     now,
				})
				if err != nil {
					return retry.Retryable(err)
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("compute_leaderboard_job: %w", err)
	}
	return nil
}
