package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Flags carries options forwarded verbatim to the capability on every
// evaluation (e.g. "deterministic": true). The engine never inspects them;
// recognized keys are up to the capability.
type Flags map[string]any

// InputMap maps the capability's named inputs to batched tensors.
type InputMap map[string]*mat.Dense

// InputMapFunc converts the two carried tensors into the named inputs a
// capability understands. It exists so an agent's internal graph can expose
// arbitrarily named inputs while the stepper interface stays fixed.
type InputMapFunc func(lastHidden, observation *mat.Dense) InputMap

// Reaction is a capability's output for one tick. All tensors are
// [batch, feature] and batch-aligned with the evaluation inputs; Extras
// holds the requested additional outputs in request order.
type Reaction struct {
	Hidden *mat.Dense
	Policy *mat.Dense
	Action *mat.Dense
	Extras []*mat.Dense
}

// Capability is the memory/policy/resolver stack backing an Agent. It
// declares its hidden-state width (for zero-fill), supplies a default
// input mapping, and evaluates one tick of the internal graph.
type Capability interface {
	StateWidth() int
	DefaultInputMap(lastHidden, observation *mat.Dense) InputMap
	Evaluate(inputs InputMap, extras []string, flags Flags) (*Reaction, error)
}

// Agent performs a single-tick reaction: previous hidden state plus the
// current observation in, new hidden state, policy and chosen action out.
// It holds no mutable state; React is safe for concurrent rollouts.
type Agent struct {
	capability Capability
	inputMap   InputMapFunc
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithInputMap overrides the capability's default input mapping.
func WithInputMap(fn InputMapFunc) AgentOption {
	return func(a *Agent) {
		a.inputMap = fn
	}
}

// NewAgent creates an agent backed by the given capability.
func NewAgent(capability Capability, opts ...AgentOption) *Agent {
	a := &Agent{
		capability: capability,
		inputMap:   capability.DefaultInputMap,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StateWidth reports the capability's declared hidden-state width.
func (a *Agent) StateWidth() int {
	return a.capability.StateWidth()
}

// React computes one tick. lastHidden and observation must share a batch
// extent; extras names additional outputs to evaluate alongside the
// mandatory three. The inputs are never mutated.
//
// The returned reaction is checked against the contract: exactly
// len(extras) extra outputs, every tensor present and batch-aligned, and
// the hidden state at the declared width.
func (a *Agent) React(lastHidden, observation *mat.Dense, extras []string, flags Flags) (*Reaction, error) {
	batch, _ := lastHidden.Dims()
	obsBatch, _ := observation.Dims()
	if obsBatch != batch {
		return nil, fmt.Errorf("%w: hidden batch %d does not match observation batch %d",
			ErrContract, batch, obsBatch)
	}

	reaction, err := a.capability.Evaluate(a.inputMap(lastHidden, observation), extras, flags)
	if err != nil {
		return nil, err
	}

	if err := a.checkReaction(reaction, batch, len(extras)); err != nil {
		return nil, err
	}
	return reaction, nil
}

func (a *Agent) checkReaction(r *Reaction, batch, extras int) error {
	if r == nil || r.Hidden == nil || r.Policy == nil || r.Action == nil {
		return fmt.Errorf("%w: capability returned incomplete reaction", ErrContract)
	}
	if len(r.Extras) != extras {
		return fmt.Errorf("%w: requested %d extra outputs, capability returned %d",
			ErrContract, extras, len(r.Extras))
	}

	if _, cols := r.Hidden.Dims(); cols != a.capability.StateWidth() {
		return fmt.Errorf("%w: hidden width %d does not match declared state width %d",
			ErrContract, cols, a.capability.StateWidth())
	}

	outputs := append([]*mat.Dense{r.Hidden, r.Policy, r.Action}, r.Extras...)
	for i, out := range outputs {
		if out == nil {
			return fmt.Errorf("%w: output %d is nil", ErrContract, i)
		}
		if rows, _ := out.Dims(); rows != batch {
			return fmt.Errorf("%w: output %d has batch %d, want %d", ErrContract, i, rows, batch)
		}
	}
	return nil
}
