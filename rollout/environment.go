package rollout

import "gonum.org/v1/gonum/mat"

// Environment is the transition function the engine steps against.
//
// Step must be a pure function of its three inputs (internal seeded
// randomness is fine, wall-clock or cross-call state is not). The engine
// never inspects environment semantics; the declared sizes exist only so
// it can synthesize zero-valued initial tensors.
type Environment interface {
	// StateSize returns the feature width of the environment state.
	StateSize() int

	// ObservationSize returns the feature width of observations.
	ObservationSize() int

	// Step advances the environment by one tick. Both inputs are
	// [batch, feature] with one row per independent session; tick is the
	// zero-based index of the current tick.
	Step(state, action *mat.Dense, tick int) (newState, newObs *mat.Dense, err error)
}
