// Package rollout drives a fixed-length, batched interaction between a
// recurrent agent and an environment, producing time-aligned trajectories
// for reinforcement-learning training.
//
// The engine is the only component with loop logic: each tick it feeds the
// carried observation and hidden state to the agent, feeds the chosen
// action to the environment, and records every output. After the unroll it
// realigns the state and observation series so that every index holds the
// values the agent actually observed when producing that index's outputs.
package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Config parameterizes one rollout call.
type Config struct {
	// SessionLength is the number of ticks to unroll. Must be >= 1.
	SessionLength int

	// BatchSize is the number of independent sessions. May be left zero
	// when every initial tensor is explicit, in which case it is inferred
	// from their row counts.
	BatchSize int

	// Initial values for the carried tensors. Zero values mean zero-fill
	// from the declared component shapes.
	InitialState       Init
	InitialObservation Init
	InitialHidden      Init

	// Extras names additional capability outputs to track each tick.
	// They come back as trailing trajectory series in request order.
	Extras []string

	// Flags is forwarded verbatim to the capability on every tick.
	Flags Flags
}

// Engine runs rollouts of one agent against one environment. It holds no
// per-call state; a single engine may serve concurrent Run calls.
type Engine struct {
	agent *Agent
	env   Environment
}

// New creates an engine for the given agent and environment.
func New(agent *Agent, env Environment) *Engine {
	return &Engine{agent: agent, env: env}
}

// Run unrolls cfg.SessionLength ticks and returns the aligned trajectory.
//
// The unroll is total: there is no early termination, and any error from
// the agent or environment aborts the whole call without a partial result,
// since a partially recorded trajectory cannot honor the alignment
// contract. Errors are surfaced wrapped with the failing tick; the engine
// never retries.
func (e *Engine) Run(cfg Config) (*Trajectory, error) {
	if cfg.SessionLength < 1 {
		return nil, fmt.Errorf("%w: session length %d, want >= 1", ErrConfig, cfg.SessionLength)
	}

	batch, err := e.resolveBatch(cfg)
	if err != nil {
		return nil, err
	}

	state, err := materialize(cfg.InitialState, batch, e.env.StateSize(), "initial state")
	if err != nil {
		return nil, err
	}
	obs, err := materialize(cfg.InitialObservation, batch, e.env.ObservationSize(), "initial observation")
	if err != nil {
		return nil, err
	}
	hidden, err := materialize(cfg.InitialHidden, batch, e.agent.StateWidth(), "initial hidden")
	if err != nil {
		return nil, err
	}

	steps := cfg.SessionLength
	rawStates := make([]*mat.Dense, 0, steps)
	rawObs := make([]*mat.Dense, 0, steps)
	hiddens := make([]*mat.Dense, 0, steps)
	policies := make([]*mat.Dense, 0, steps)
	actions := make([]*mat.Dense, 0, steps)
	extras := make([][]*mat.Dense, len(cfg.Extras))
	for i := range extras {
		extras[i] = make([]*mat.Dense, 0, steps)
	}

	initialState, initialObs := state, obs

	for t := 0; t < steps; t++ {
		reaction, err := e.agent.React(hidden, obs, cfg.Extras, cfg.Flags)
		if err != nil {
			return nil, fmt.Errorf("tick %d: agent reaction: %w", t, err)
		}

		newState, newObs, err := e.env.Step(state, reaction.Action, t)
		if err != nil {
			return nil, fmt.Errorf("tick %d: environment step: %w", t, err)
		}
		if err := e.checkTransition(newState, newObs, batch); err != nil {
			return nil, fmt.Errorf("tick %d: %w", t, err)
		}

		rawStates = append(rawStates, newState)
		rawObs = append(rawObs, newObs)
		hiddens = append(hiddens, reaction.Hidden)
		policies = append(policies, reaction.Policy)
		actions = append(actions, reaction.Action)
		for i, extra := range reaction.Extras {
			extras[i] = append(extras[i], extra)
		}

		state, obs, hidden = newState, newObs, reaction.Hidden
	}

	// The recorded state/observation at tick t are post-transition (the
	// result of tick t's action), while hidden/policy/action at t were
	// computed from the tick t-1 result. Shift the environment series back
	// one tick: prepend the initial values, drop the final transition.
	alignedStates := make([]*mat.Dense, 0, steps)
	alignedStates = append(alignedStates, initialState)
	alignedStates = append(alignedStates, rawStates[:steps-1]...)
	alignedObs := make([]*mat.Dense, 0, steps)
	alignedObs = append(alignedObs, initialObs)
	alignedObs = append(alignedObs, rawObs[:steps-1]...)

	trajectory := &Trajectory{}
	if trajectory.States, err = newSequence(alignedStates); err != nil {
		return nil, err
	}
	if trajectory.Observations, err = newSequence(alignedObs); err != nil {
		return nil, err
	}
	if trajectory.Hidden, err = newSequence(hiddens); err != nil {
		return nil, err
	}
	if trajectory.Policies, err = newSequence(policies); err != nil {
		return nil, err
	}
	if trajectory.Actions, err = newSequence(actions); err != nil {
		return nil, err
	}
	for i, ticks := range extras {
		seq, err := newSequence(ticks)
		if err != nil {
			return nil, fmt.Errorf("extra output %q: %w", cfg.Extras[i], err)
		}
		trajectory.Extras = append(trajectory.Extras, seq)
	}

	return trajectory, nil
}

// resolveBatch determines the batch extent: an explicit BatchSize wins;
// otherwise every initial tensor must be explicit and agree.
func (e *Engine) resolveBatch(cfg Config) (int, error) {
	if cfg.BatchSize < 0 {
		return 0, fmt.Errorf("%w: negative batch size %d", ErrConfig, cfg.BatchSize)
	}
	if cfg.BatchSize > 0 {
		return cfg.BatchSize, nil
	}

	batch := 0
	for _, init := range []Init{cfg.InitialState, cfg.InitialObservation, cfg.InitialHidden} {
		tensor, ok := init.explicit()
		if !ok {
			return 0, fmt.Errorf("%w: batch size required unless every initial value is explicit", ErrConfig)
		}
		rows, _ := tensor.Dims()
		if batch == 0 {
			batch = rows
		} else if rows != batch {
			return 0, fmt.Errorf("%w: initial tensors disagree on batch size (%d vs %d)",
				ErrConfig, batch, rows)
		}
	}
	if batch == 0 {
		return 0, fmt.Errorf("%w: initial tensors have no rows to infer a batch size from", ErrConfig)
	}
	return batch, nil
}

func (e *Engine) checkTransition(state, obs *mat.Dense, batch int) error {
	if state == nil || obs == nil {
		return fmt.Errorf("%w: environment returned nil tensors", ErrContract)
	}
	if rows, cols := state.Dims(); rows != batch || cols != e.env.StateSize() {
		return fmt.Errorf("%w: environment state is %dx%d, want %dx%d",
			ErrContract, rows, cols, batch, e.env.StateSize())
	}
	if rows, cols := obs.Dims(); rows != batch || cols != e.env.ObservationSize() {
		return fmt.Errorf("%w: observation is %dx%d, want %dx%d",
			ErrContract, rows, cols, batch, e.env.ObservationSize())
	}
	return nil
}

// materialize resolves one Init against the declared width and resolved
// batch size.
func materialize(init Init, batch, width int, name string) (*mat.Dense, error) {
	tensor, ok := init.explicit()
	if !ok {
		return mat.NewDense(batch, width, nil), nil
	}
	rows, cols := tensor.Dims()
	if rows != batch || cols != width {
		return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrConfig, name, rows, cols, batch, width)
	}
	return tensor, nil
}
