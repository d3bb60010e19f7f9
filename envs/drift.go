package envs

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Drift is a one-dimensional random-walk environment: each discrete
// action nudges the state up or down around the action-space center, and
// observations are the new state plus Gaussian noise.
//
// Noise is drawn from a source derived from the configured seed and the
// tick index, so Step stays a pure function of its inputs.
type Drift struct {
	actions int
	step    float64
	sigma   float64
	seed    int64
}

// NewDrift creates a drift environment for a discrete action space of the
// given size. step scales the per-tick movement, sigma the observation
// noise.
func NewDrift(actions int, step, sigma float64, seed int64) (*Drift, error) {
	if actions < 2 {
		return nil, fmt.Errorf("drift needs at least 2 actions, got %d", actions)
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	return &Drift{actions: actions, step: step, sigma: sigma, seed: seed}, nil
}

// StateSize implements rollout.Environment.
func (d *Drift) StateSize() int { return 1 }

// ObservationSize implements rollout.Environment.
func (d *Drift) ObservationSize() int { return 1 }

// Step implements rollout.Environment.
func (d *Drift) Step(state, action *mat.Dense, tick int) (*mat.Dense, *mat.Dense, error) {
	batch, _ := state.Dims()
	if rows, _ := action.Dims(); rows != batch {
		return nil, nil, fmt.Errorf("action batch %d does not match state batch %d", rows, batch)
	}

	rng := rand.New(rand.NewSource(d.seed + int64(tick)))
	center := float64(d.actions-1) / 2

	newState := mat.NewDense(batch, 1, nil)
	newObs := mat.NewDense(batch, 1, nil)
	for i := 0; i < batch; i++ {
		a := action.At(i, 0)
		if a < 0 || a >= float64(d.actions) {
			return nil, nil, fmt.Errorf("action %v out of range [0, %d)", a, d.actions)
		}
		s := state.At(i, 0) + (a-center)*d.step
		newState.Set(i, 0, s)
		newObs.Set(i, 0, s+rng.NormFloat64()*d.sigma)
	}
	return newState, newObs, nil
}
