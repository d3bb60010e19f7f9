package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Collector emits structured metric events for rollout operations.
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track completed rollouts
func (c *Collector) RolloutCompleted(rolloutID string, steps, batch int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "rollout_completed").
		Str("rollout_id", rolloutID).
		Int("steps", steps).
		Int("batch", batch).
		Dur("duration", duration).
		Msg("Rollout metric")
}

// Track failed rollouts
func (c *Collector) RolloutFailed(rolloutID string, err error) {
	c.logger.Warn().
		Str("metric", "rollout_failed").
		Str("rollout_id", rolloutID).
		Err(err).
		Msg("Rollout failure metric")
}

// Track buffer flushes
func (c *Collector) BufferFlush(count int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "buffer_flush").
		Int("count", count).
		Dur("duration", duration).
		Msg("Buffer flush metric")
}
