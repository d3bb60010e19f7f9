package collector

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/agentnet/rollout"
)

func testTrajectory(t *testing.T, steps, batch int) *rollout.Trajectory {
	t.Helper()

	capability := constantCapability{}
	engine := rollout.New(rollout.NewAgent(capability), constantEnv{})
	trajectory, err := engine.Run(rollout.Config{SessionLength: steps, BatchSize: batch})
	require.NoError(t, err)
	return trajectory
}

type constantCapability struct{}

func (constantCapability) StateWidth() int { return 1 }

func (constantCapability) DefaultInputMap(lastHidden, observation *mat.Dense) rollout.InputMap {
	return rollout.InputMap{"hidden": lastHidden, "observation": observation}
}

func (constantCapability) Evaluate(inputs rollout.InputMap, extras []string, flags rollout.Flags) (*rollout.Reaction, error) {
	batch, _ := inputs["observation"].Dims()
	reaction := &rollout.Reaction{
		Hidden: mat.NewDense(batch, 1, nil),
		Policy: mat.NewDense(batch, 1, nil),
		Action: mat.NewDense(batch, 1, nil),
	}
	for range extras {
		reaction.Extras = append(reaction.Extras, mat.NewDense(batch, 1, nil))
	}
	return reaction, nil
}

type constantEnv struct{}

func (constantEnv) StateSize() int       { return 1 }
func (constantEnv) ObservationSize() int { return 1 }

func (constantEnv) Step(state, action *mat.Dense, tick int) (*mat.Dense, *mat.Dense, error) {
	batch, _ := state.Dims()
	return mat.NewDense(batch, 1, nil), mat.NewDense(batch, 1, nil), nil
}

func TestMemoryBuffer_Store(t *testing.T) {
	buffer := NewMemoryBuffer(1000)
	defer buffer.Close()

	ctx := context.Background()

	record := &Record{
		EnvID:      "counter",
		Steps:      8,
		Batch:      2,
		Trajectory: testTrajectory(t, 8, 2),
	}

	err := buffer.Store(ctx, record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, 1.0, record.Priority)

	stats, err := buffer.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalRollouts)
	assert.Equal(t, uint64(16), stats.TotalTicks)
	assert.Equal(t, uint64(1), stats.RolloutsByEnv["counter"])
}

func TestMemoryBuffer_StoreRejectsEmpty(t *testing.T) {
	buffer := NewMemoryBuffer(1000)
	defer buffer.Close()

	err := buffer.Store(context.Background(), &Record{EnvID: "counter"})
	assert.Error(t, err)
}

func TestMemoryBuffer_StoreBatch(t *testing.T) {
	buffer := NewMemoryBuffer(1000)
	defer buffer.Close()

	ctx := context.Background()

	records := []*Record{
		{EnvID: "counter", Steps: 4, Batch: 1, Trajectory: testTrajectory(t, 4, 1)},
		{EnvID: "counter", Steps: 4, Batch: 1, Trajectory: testTrajectory(t, 4, 1)},
		{EnvID: "drift", Steps: 4, Batch: 1, Trajectory: testTrajectory(t, 4, 1)},
	}

	ids, err := buffer.StoreBatch(ctx, records)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	stats, err := buffer.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalRollouts)
	assert.Equal(t, uint64(2), stats.RolloutsByEnv["counter"])
	assert.Equal(t, uint64(1), stats.RolloutsByEnv["drift"])
}

func TestMemoryBuffer_Sample(t *testing.T) {
	buffer := NewMemoryBuffer(1000)
	defer buffer.Close()

	buffer.rng = rand.New(rand.NewSource(42))
	ctx := context.Background()

	records := []*Record{
		{EnvID: "counter", Steps: 4, Batch: 1, Trajectory: testTrajectory(t, 4, 1), Priority: 1.0},
		{EnvID: "counter", Steps: 4, Batch: 1, Trajectory: testTrajectory(t, 4, 1), Priority: 2.0},
		{EnvID: "drift", Steps: 4, Batch: 1, Trajectory: testTrajectory(t, 4, 1), Priority: 1.0},
	}
	_, err := buffer.StoreBatch(ctx, records)
	require.NoError(t, err)

	sampled, err := buffer.Sample(ctx, &SampleConfig{Count: 2})
	require.NoError(t, err)
	assert.Len(t, sampled, 2)

	// Environment filter
	sampled, err = buffer.Sample(ctx, &SampleConfig{Count: 5, EnvID: "drift"})
	require.NoError(t, err)
	require.Len(t, sampled, 1)
	assert.Equal(t, "drift", sampled[0].EnvID)

	// Prioritized sampling
	sampled, err = buffer.Sample(ctx, &SampleConfig{Count: 2, Prioritized: true, PriorityAlpha: 1.0})
	require.NoError(t, err)
	assert.Len(t, sampled, 2)
}

func TestMemoryBuffer_SampleEmpty(t *testing.T) {
	buffer := NewMemoryBuffer(1000)
	defer buffer.Close()

	_, err := buffer.Sample(context.Background(), &SampleConfig{Count: 1})
	assert.Error(t, err)
}

func TestMemoryBuffer_Eviction(t *testing.T) {
	buffer := NewMemoryBuffer(2)
	defer buffer.Close()

	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		err := buffer.Store(ctx, &Record{
			ID:         string(rune('a' + i)),
			EnvID:      "counter",
			Steps:      4,
			Batch:      1,
			Trajectory: testTrajectory(t, 4, 1),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	stats, err := buffer.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalRollouts)

	// The oldest record was evicted.
	assert.NotContains(t, buffer.records, "a")
	assert.Contains(t, buffer.records, "b")
	assert.Contains(t, buffer.records, "c")
}
