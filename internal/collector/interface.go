// Package collector buffers finished rollout trajectories in memory for
// downstream consumers (e.g. a training loop sampling recent experience).
package collector

import (
	"context"
	"time"

	"github.com/cartridge/agentnet/rollout"
)

// Record wraps one finished trajectory with its bookkeeping.
type Record struct {
	ID         string
	EnvID      string
	Steps      int
	Batch      int
	Trajectory *rollout.Trajectory
	Priority   float64
	CreatedAt  time.Time
}

// SampleConfig defines parameters for sampling buffered rollouts.
type SampleConfig struct {
	Count         int
	EnvID         string
	Prioritized   bool
	PriorityAlpha float64
}

// Stats describes the buffer contents.
type Stats struct {
	TotalRollouts uint64
	TotalTicks    uint64
	RolloutsByEnv map[string]uint64
	Oldest        *time.Time
	Newest        *time.Time
}

// Backend is the buffer storage interface.
type Backend interface {
	// Store a single rollout record.
	Store(ctx context.Context, record *Record) error

	// Store multiple records, returning the assigned IDs.
	StoreBatch(ctx context.Context, records []*Record) ([]string, error)

	// Sample records according to the given configuration.
	Sample(ctx context.Context, config *SampleConfig) ([]*Record, error)

	// Stats returns buffer statistics, optionally filtered by environment.
	Stats(ctx context.Context, envID string) (*Stats, error)

	// Close releases the buffer.
	Close() error
}
