package rollout

import "errors"

var (
	// ErrConfig indicates an unusable rollout configuration: an
	// unresolvable batch size, a non-positive session length, or an
	// explicit initial tensor that disagrees with a declared shape.
	ErrConfig = errors.New("invalid rollout configuration")

	// ErrContract indicates a capability broke its evaluation contract:
	// wrong number of outputs, or a batch or feature extent that drifted
	// from the declared one mid-rollout.
	ErrContract = errors.New("capability contract violation")
)
