package rollout

import "gonum.org/v1/gonum/mat"

// Init selects the starting value for one of the carried tensors. The
// zero value means zero-fill from the declared shape and resolved batch
// size; Explicit supplies the tensor directly.
type Init struct {
	tensor *mat.Dense
}

// Explicit uses t as the initial value.
func Explicit(t *mat.Dense) Init {
	return Init{tensor: t}
}

// Zeros requests zero-fill. Equivalent to the zero value; provided for
// readability at call sites that spell out every initial.
func Zeros() Init {
	return Init{}
}

func (i Init) explicit() (*mat.Dense, bool) {
	return i.tensor, i.tensor != nil
}
