package sokudo

import "errors"

var (
	// ErrHandleNotFound is returned when a body or joint handle is stale or
	// never existed in this world.
	ErrHandleNotFound = errors.New("handle not found")

	// ErrInvalidJointConfig is returned when a joint is created with
	// parameters that cannot produce a solvable constraint.
	ErrInvalidJointConfig = errors.New("invalid joint configuration")
)
