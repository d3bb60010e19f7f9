package policy

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Resolver converts a policy distribution into concrete actions, one per
// batch row. The returned action tensor is [batch, 1].
type Resolver interface {
	Resolve(policy *mat.Dense) (*mat.Dense, error)
}

// Greedy picks the highest-scoring action per row.
type Greedy struct{}

// Resolve implements Resolver.
func (Greedy) Resolve(policy *mat.Dense) (*mat.Dense, error) {
	rows, cols := policy.Dims()
	if cols == 0 {
		return nil, fmt.Errorf("policy has no actions to resolve")
	}

	actions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		row := policy.RawRowView(i)
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		actions.Set(i, 0, float64(best))
	}
	return actions, nil
}

// Sampler draws actions from the policy distribution per row. Rows must
// be non-negative and sum to a positive mass.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler seeded for reproducibility.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Resolve implements Resolver.
func (s *Sampler) Resolve(policy *mat.Dense) (*mat.Dense, error) {
	rows, cols := policy.Dims()
	if cols == 0 {
		return nil, fmt.Errorf("policy has no actions to resolve")
	}

	actions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		row := policy.RawRowView(i)
		total := 0.0
		for _, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("negative probability %v in policy row %d", v, i)
			}
			total += v
		}
		if total <= 0 {
			return nil, fmt.Errorf("policy row %d has no probability mass", i)
		}

		target := s.rng.Float64() * total
		sum := 0.0
		picked := cols - 1
		for j, v := range row {
			sum += v
			if sum >= target {
				picked = j
				break
			}
		}
		actions.Set(i, 0, float64(picked))
	}
	return actions, nil
}
