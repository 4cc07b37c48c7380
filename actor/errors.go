package actor

import "errors"

// Construction errors. Bad bodies and shapes are rejected synchronously so
// that nothing malformed ever enters the simulation loop.
var (
	// ErrInvalidBodyConfig indicates a body whose mass properties cannot
	// produce motion (zero or negative mass on a dynamic body, or a shape
	// that only supports static use).
	ErrInvalidBodyConfig = errors.New("actor: invalid body configuration")

	// ErrInvalidShape indicates a shape with non-finite or non-positive
	// dimensions.
	ErrInvalidShape = errors.New("actor: invalid shape dimensions")
)
