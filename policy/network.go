// Package policy provides a concrete memory/policy/resolver capability
// for the rollout engine: a linear-tanh recurrent memory, a softmax
// policy head, and pluggable action resolution.
package policy

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/agentnet/rollout"
)

// Capability input names exposed by Network's default input map.
const (
	InputHidden      = "hidden"
	InputObservation = "observation"
)

// Extra output taps Network can track alongside the mandatory three.
const (
	TapLogits  = "logits"  // pre-softmax action scores, [batch, actions]
	TapEntropy = "entropy" // per-row policy entropy, [batch, 1]
)

// Network is a small recurrent policy network implementing
// rollout.Capability:
//
//	hidden' = tanh(last*Wh + obs*Wo + b)
//	policy  = softmax(hidden'*Wp)
//	action  = resolver(policy)
//
// Weights are fixed at construction. Evaluation only computes from its
// inputs, though the default sampling resolver draws from a seeded rng;
// use the deterministic flag or a Greedy resolver where exact
// repeatability across runs matters.
type Network struct {
	wh   *mat.Dense // [hidden, hidden]
	wo   *mat.Dense // [obs, hidden]
	bias []float64  // [hidden]
	wp   *mat.Dense // [hidden, actions]

	obsWidth    int
	hiddenWidth int
	actions     int

	resolver Resolver
}

// Option configures a Network.
type Option func(*Network)

// WithResolver overrides the default sampling resolver.
func WithResolver(r Resolver) Option {
	return func(n *Network) {
		n.resolver = r
	}
}

// NewNetwork creates a network with the given widths, deterministically
// initialized from seed. The default resolver samples from the policy
// using the same seed.
func NewNetwork(obsWidth, hiddenWidth, actions int, seed int64, opts ...Option) (*Network, error) {
	if obsWidth < 1 || hiddenWidth < 1 || actions < 1 {
		return nil, fmt.Errorf("network widths must be positive, got obs=%d hidden=%d actions=%d",
			obsWidth, hiddenWidth, actions)
	}

	rng := rand.New(rand.NewSource(seed))
	n := &Network{
		wh:          randomWeights(rng, hiddenWidth, hiddenWidth),
		wo:          randomWeights(rng, obsWidth, hiddenWidth),
		bias:        make([]float64, hiddenWidth),
		wp:          randomWeights(rng, hiddenWidth, actions),
		obsWidth:    obsWidth,
		hiddenWidth: hiddenWidth,
		actions:     actions,
		resolver:    NewSampler(seed),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// randomWeights draws a [rows, cols] matrix scaled by 1/sqrt(rows).
func randomWeights(rng *rand.Rand, rows, cols int) *mat.Dense {
	scale := 1.0 / math.Sqrt(float64(rows))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(rows, cols, data)
}

// StateWidth implements rollout.Capability.
func (n *Network) StateWidth() int {
	return n.hiddenWidth
}

// Actions returns the size of the discrete action space.
func (n *Network) Actions() int {
	return n.actions
}

// DefaultInputMap implements rollout.Capability.
func (n *Network) DefaultInputMap(lastHidden, observation *mat.Dense) rollout.InputMap {
	return rollout.InputMap{
		InputHidden:      lastHidden,
		InputObservation: observation,
	}
}

// Evaluate implements rollout.Capability. The flag "deterministic": true
// forces greedy action resolution regardless of the configured resolver.
func (n *Network) Evaluate(inputs rollout.InputMap, extras []string, flags rollout.Flags) (*rollout.Reaction, error) {
	last := inputs[InputHidden]
	obs := inputs[InputObservation]
	if last == nil || obs == nil {
		return nil, fmt.Errorf("input map missing %q or %q", InputHidden, InputObservation)
	}
	if _, cols := last.Dims(); cols != n.hiddenWidth {
		return nil, fmt.Errorf("hidden input width %d, want %d", cols, n.hiddenWidth)
	}
	if _, cols := obs.Dims(); cols != n.obsWidth {
		return nil, fmt.Errorf("observation width %d, want %d", cols, n.obsWidth)
	}

	hidden := n.recur(last, obs)

	var logits mat.Dense
	logits.Mul(hidden, n.wp)
	pol := softmaxRows(&logits)

	resolver := n.resolver
	if deterministic, _ := flags["deterministic"].(bool); deterministic {
		resolver = Greedy{}
	}
	action, err := resolver.Resolve(pol)
	if err != nil {
		return nil, fmt.Errorf("resolve action: %w", err)
	}

	reaction := &rollout.Reaction{
		Hidden: hidden,
		Policy: pol,
		Action: action,
	}
	for _, name := range extras {
		tap, err := n.tap(name, hidden, &logits, pol)
		if err != nil {
			return nil, err
		}
		reaction.Extras = append(reaction.Extras, tap)
	}
	return reaction, nil
}

// recur computes the new hidden state, broadcasting the bias across rows.
func (n *Network) recur(last, obs *mat.Dense) *mat.Dense {
	var pre, fromObs mat.Dense
	pre.Mul(last, n.wh)
	fromObs.Mul(obs, n.wo)
	pre.Add(&pre, &fromObs)

	batch, _ := last.Dims()
	hidden := mat.NewDense(batch, n.hiddenWidth, nil)
	for i := 0; i < batch; i++ {
		in := pre.RawRowView(i)
		out := hidden.RawRowView(i)
		for j, v := range in {
			out[j] = math.Tanh(v + n.bias[j])
		}
	}
	return hidden
}

func (n *Network) tap(name string, hidden, logits, pol *mat.Dense) (*mat.Dense, error) {
	switch name {
	case TapLogits:
		return mat.DenseCopyOf(logits), nil
	case TapEntropy:
		return entropyRows(pol), nil
	default:
		return nil, fmt.Errorf("unknown extra output %q", name)
	}
}

// softmaxRows applies a numerically stable softmax to each row.
func softmaxRows(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		in := logits.RawRowView(i)
		dst := out.RawRowView(i)

		max := in[0]
		for _, v := range in[1:] {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		for j, v := range in {
			dst[j] = math.Exp(v - max)
			sum += dst[j]
		}
		for j := range dst {
			dst[j] /= sum
		}
	}
	return out
}

// entropyRows computes -sum(p*log(p)) per row as a [batch, 1] tensor.
func entropyRows(pol *mat.Dense) *mat.Dense {
	rows, _ := pol.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		h := 0.0
		for _, p := range pol.RawRowView(i) {
			if p > 0 {
				h -= p * math.Log(p)
			}
		}
		out.Set(i, 0, h)
	}
	return out
}
