package runner

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/agentnet/envs"
	"github.com/cartridge/agentnet/internal/collector"
	"github.com/cartridge/agentnet/internal/config"
	"github.com/cartridge/agentnet/policy"
	"github.com/cartridge/agentnet/rollout"
)

func testRunner(t *testing.T, cfg *config.Config) (*Runner, *collector.MemoryBuffer) {
	t.Helper()

	network, err := policy.NewNetwork(1, cfg.HiddenWidth, cfg.Actions, cfg.Seed)
	require.NoError(t, err)

	engine := rollout.New(rollout.NewAgent(network), envs.Counter{})
	buffer := collector.NewMemoryBuffer(cfg.BufferSize)
	return New(cfg, engine, buffer, zerolog.Nop()), buffer
}

func TestRunner_RunToLimit(t *testing.T) {
	cfg := config.Default()
	cfg.SessionLength = 6
	cfg.BatchSize = 2
	cfg.MaxRollouts = 5
	cfg.FlushSize = 2
	cfg.FlushInterval = time.Minute

	runner, buffer := testRunner(t, cfg)
	defer buffer.Close()

	err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, runner.Rollouts())

	// Everything flushed, including the partial final batch.
	stats, err := buffer.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stats.TotalRollouts)
	assert.Equal(t, uint64(5*6*2), stats.TotalTicks)
	assert.Equal(t, uint64(5), stats.RolloutsByEnv["counter"])
}

func TestRunner_Cancellation(t *testing.T) {
	cfg := config.Default()
	cfg.SessionLength = 4
	cfg.BatchSize = 1
	cfg.MaxRollouts = 0 // unlimited
	cfg.FlushSize = 100
	cfg.FlushInterval = time.Minute
	cfg.BufferSize = 1 << 20 // keep eviction out of the count check

	runner, buffer := testRunner(t, cfg)
	defer buffer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Runner did not stop after cancellation")
	}

	// Pending trajectories were flushed on the way out.
	if runner.Rollouts() > 0 {
		stats, err := buffer.Stats(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, uint64(runner.Rollouts()), stats.TotalRollouts)
	}
}
