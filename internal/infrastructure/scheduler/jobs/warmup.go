// Package jobs contains the scheduled background jobs for Shulebook.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE WARM-UP JOB
// Recomputes the analytics for the configured scopes before the school day
// starts, so teachers' first report requests hit a warm cache.
// ══════════════════════════════════════════════════════════════════════════════

// Warmer computes and caches the analytics for one scope.
// Implemented by the comprehensive analytics query handler.
type Warmer interface {
	WarmScope(ctx context.Context, filter marks.Filter) error
}

// LockProvider takes the distributed warm-up lock so only one process
// runs the warm-up per tick.
type LockProvider interface {
	AcquireWarmupLock(ctx context.Context, runID string) (bool, error)
}

// WarmupJob warms the analytics cache for a fixed set of scopes.
type WarmupJob struct {
	warmer Warmer
	locks  LockProvider
	bus    shared.EventBus
	scopes []marks.Filter
	logger *slog.Logger

	// scopeTimeout bounds a single scope computation.
	scopeTimeout time.Duration
}

// WarmupJobConfig contains configuration for WarmupJob.
type WarmupJobConfig struct {
	// Warmer computes analytics for a scope.
	Warmer Warmer

	// Locks provides the distributed lock. Optional; nil skips locking
	// (single-instance deployments).
	Locks LockProvider

	// Bus receives the WarmupCompleted event. Optional.
	Bus shared.EventBus

	// Scopes are the filters to warm, typically one per active
	// grade/term combination.
	Scopes []marks.Filter

	// Logger for structured logging.
	Logger *slog.Logger

	// ScopeTimeout bounds a single scope computation (default 2 minutes).
	ScopeTimeout time.Duration
}

// NewWarmupJob creates a new WarmupJob.
func NewWarmupJob(config WarmupJobConfig) (*WarmupJob, error) {
	if config.Warmer == nil {
		return nil, fmt.Errorf("warmup job: warmer is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ScopeTimeout <= 0 {
		config.ScopeTimeout = 2 * time.Minute
	}

	return &WarmupJob{
		warmer:       config.Warmer,
		locks:        config.Locks,
		bus:          config.Bus,
		scopes:       config.Scopes,
		logger:       config.Logger,
		scopeTimeout: config.ScopeTimeout,
	}, nil
}

// Name implements scheduler.Job.
func (j *WarmupJob) Name() string {
	return "analytics_warmup"
}

// Description implements scheduler.Job.
func (j *WarmupJob) Description() string {
	return "Recomputes cached analytics for the configured scopes"
}

// Run implements scheduler.Job.
// Scope failures are logged and counted but do not abort the run; a
// half-warm cache still beats a cold one.
func (j *WarmupJob) Run(ctx context.Context) error {
	runID := uuid.New().String()
	log := j.logger.With("run_id", runID)

	if j.locks != nil {
		acquired, err := j.locks.AcquireWarmupLock(ctx, runID)
		if err != nil {
			return fmt.Errorf("warmup job: acquire lock: %w", err)
		}
		if !acquired {
			log.Info("warmup skipped, another instance holds the lock")
			return nil
		}
	}

	started := time.Now()
	var warm, failed int

	for _, scope := range j.scopes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		scopeCtx, cancel := context.WithTimeout(ctx, j.scopeTimeout)
		err := j.warmer.WarmScope(scopeCtx, scope)
		cancel()

		if err != nil {
			failed++
			log.Error("scope warmup failed",
				"term_id", scope.TermID,
				"grade_id", scope.GradeID,
				"error", err,
			)
			continue
		}
		warm++
	}

	duration := time.Since(started)
	log.Info("warmup completed",
		"scopes_warm", warm,
		"scopes_failed", failed,
		"duration", duration,
	)

	if j.bus != nil {
		event := shared.NewWarmupCompletedEvent(runID, warm, failed, duration)
		if err := j.bus.Publish(event); err != nil {
			log.Error("failed to publish warmup event", "error", err)
		}
	}

	if failed > 0 && warm == 0 {
		return fmt.Errorf("warmup job: all %d scopes failed", failed)
	}
	return nil
}
