package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sequence is one batch-major trajectory series: [batch, time, width]
// over a flat backing slice. The engine records ticks time-major and
// transposes once when assembling the trajectory.
type Sequence struct {
	batch int
	steps int
	width int
	data  []float64
}

// newSequence transposes a time-major recording (one [batch, width]
// tensor per tick) into a batch-major sequence. Every tick must share the
// batch and feature extents of the first.
func newSequence(ticks []*mat.Dense) (*Sequence, error) {
	if len(ticks) == 0 {
		return nil, fmt.Errorf("%w: empty recording", ErrContract)
	}

	batch, width := ticks[0].Dims()
	s := &Sequence{
		batch: batch,
		steps: len(ticks),
		width: width,
		data:  make([]float64, batch*len(ticks)*width),
	}

	for t, tick := range ticks {
		rows, cols := tick.Dims()
		if rows != batch || cols != width {
			return nil, fmt.Errorf("%w: tick %d is %dx%d, want %dx%d",
				ErrContract, t, rows, cols, batch, width)
		}
		for b := 0; b < batch; b++ {
			copy(s.data[(b*s.steps+t)*width:], tick.RawRowView(b))
		}
	}
	return s, nil
}

// Batch returns the batch extent.
func (s *Sequence) Batch() int { return s.batch }

// Len returns the number of ticks.
func (s *Sequence) Len() int { return s.steps }

// Width returns the feature extent.
func (s *Sequence) Width() int { return s.width }

// At returns the feature vector for batch element b at tick t. The
// returned slice aliases the sequence and must not be modified.
func (s *Sequence) At(b, t int) []float64 {
	return s.data[(b*s.steps+t)*s.width : (b*s.steps+t+1)*s.width]
}

// Step returns a [batch, width] copy of tick t across the whole batch.
func (s *Sequence) Step(t int) *mat.Dense {
	out := mat.NewDense(s.batch, s.width, nil)
	for b := 0; b < s.batch; b++ {
		out.SetRow(b, s.At(b, t))
	}
	return out
}

// Row returns a [time, width] copy of batch element b's full series.
func (s *Sequence) Row(b int) *mat.Dense {
	data := make([]float64, s.steps*s.width)
	copy(data, s.data[b*s.steps*s.width:(b+1)*s.steps*s.width])
	return mat.NewDense(s.steps, s.width, data)
}

// Trajectory is the product of one rollout: five causally aligned
// sequences plus any requested extra series, all batch-major with the
// same batch and time extents.
//
// Alignment contract: at every index i, States and Observations hold the
// environment values the agent observed in order to produce Hidden,
// Policies and Actions at the same index.
type Trajectory struct {
	States       *Sequence
	Observations *Sequence
	Hidden       *Sequence
	Policies     *Sequence
	Actions      *Sequence

	// Extras holds the requested extra output series in request order.
	Extras []*Sequence
}
