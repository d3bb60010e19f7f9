// Package envs provides built-in environments for the rollout engine.
package envs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Counter is a deterministic environment whose observation at tick t is t
// itself, for every batch row; the state mirrors the observation. It
// exists to make trajectory time-alignment observable: from zero initials
// the aligned observation series reads [0, 0, 1, 2, ...].
type Counter struct{}

// StateSize implements rollout.Environment.
func (Counter) StateSize() int { return 1 }

// ObservationSize implements rollout.Environment.
func (Counter) ObservationSize() int { return 1 }

// Step implements rollout.Environment. Actions are ignored.
func (Counter) Step(state, action *mat.Dense, tick int) (*mat.Dense, *mat.Dense, error) {
	batch, _ := state.Dims()
	if rows, _ := action.Dims(); rows != batch {
		return nil, nil, fmt.Errorf("action batch %d does not match state batch %d", rows, batch)
	}

	newState := mat.NewDense(batch, 1, nil)
	newObs := mat.NewDense(batch, 1, nil)
	for i := 0; i < batch; i++ {
		newState.Set(i, 0, float64(tick))
		newObs.Set(i, 0, float64(tick))
	}
	return newState, newObs, nil
}
