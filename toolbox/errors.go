package toolbox

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector or matrix does not have
	// the shape an operation requires, including incompatible consecutive
	// layers.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidConfiguration is returned for unusable hyperparameters or
	// options, before any computation starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNumericalInstability is returned when a cost or activation is NaN or
	// infinite.
	ErrNumericalInstability = errors.New("numerical instability")
)
