// Package runner drives repeated rollouts and buffers the resulting
// trajectories for consumers.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/agentnet/internal/collector"
	"github.com/cartridge/agentnet/internal/config"
	"github.com/cartridge/agentnet/internal/metrics"
	"github.com/cartridge/agentnet/rollout"
)

// Runner repeatedly unrolls an engine and flushes finished trajectories
// to a collector backend.
type Runner struct {
	cfg     *config.Config
	engine  *rollout.Engine
	backend collector.Backend
	metrics *metrics.Collector
	logger  zerolog.Logger

	rolloutCount int
	pending      []*collector.Record
}

// New creates a runner.
func New(cfg *config.Config, engine *rollout.Engine, backend collector.Backend, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		engine:  engine,
		backend: backend,
		metrics: metrics.NewCollector(logger),
		logger:  logger,
		pending: make([]*collector.Record, 0, cfg.FlushSize),
	}
}

// Run starts the rollout loop. It stops when MaxRollouts rollouts have
// completed (0 means unlimited) or the context is cancelled, flushing any
// buffered trajectories before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Str("env_id", r.cfg.EnvID).
		Int("session_length", r.cfg.SessionLength).
		Int("batch_size", r.cfg.BatchSize).
		Msg("Runner starting")

	flushTicker := time.NewTicker(r.cfg.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Context cancelled, stopping runner")
			r.flush(ctx)
			return ctx.Err()

		case <-flushTicker.C:
			// Flush partial batches periodically
			if len(r.pending) > 0 {
				if err := r.flush(ctx); err != nil {
					r.logger.Error().Err(err).Msg("Failed to flush buffer")
				}
			}

		default:
			if r.cfg.MaxRollouts > 0 && r.rolloutCount >= r.cfg.MaxRollouts {
				r.logger.Info().Int("rollouts", r.rolloutCount).Msg("Reached rollout limit, stopping")
				return r.flush(ctx)
			}

			if err := r.runRollout(ctx); err != nil {
				// A failed rollout yields no partial trajectory; move on.
				r.logger.Error().Err(err).Int("rollout", r.rolloutCount+1).Msg("Rollout failed")
				continue
			}

			r.rolloutCount++
			if r.rolloutCount%10 == 0 {
				r.logger.Info().Int("rollouts", r.rolloutCount).Msg("Progress")
			}
		}
	}
}

// Rollouts reports how many rollouts completed so far.
func (r *Runner) Rollouts() int {
	return r.rolloutCount
}

func (r *Runner) runRollout(ctx context.Context) error {
	rolloutID := fmt.Sprintf("%s-rollout-%d", r.cfg.EnvID, r.rolloutCount)
	start := time.Now()

	trajectory, err := r.engine.Run(rollout.Config{
		SessionLength: r.cfg.SessionLength,
		BatchSize:     r.cfg.BatchSize,
		Flags:         rollout.Flags{"deterministic": r.cfg.Deterministic},
	})
	if err != nil {
		r.metrics.RolloutFailed(rolloutID, err)
		return fmt.Errorf("rollout %s: %w", rolloutID, err)
	}

	r.metrics.RolloutCompleted(rolloutID, trajectory.Actions.Len(), trajectory.Actions.Batch(), time.Since(start))

	r.pending = append(r.pending, &collector.Record{
		EnvID:      r.cfg.EnvID,
		Steps:      trajectory.Actions.Len(),
		Batch:      trajectory.Actions.Batch(),
		Trajectory: trajectory,
	})
	if len(r.pending) >= r.cfg.FlushSize {
		return r.flush(ctx)
	}
	return nil
}

// flush hands pending records to the backend.
func (r *Runner) flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}

	start := time.Now()
	ids, err := r.backend.StoreBatch(ctx, r.pending)
	if err != nil {
		return fmt.Errorf("store batch: %w", err)
	}
	r.metrics.BufferFlush(len(ids), time.Since(start))

	r.pending = r.pending[:0]
	return nil
}
