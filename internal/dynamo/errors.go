package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for solver operations.
var (
	// ErrInfeasible indicates the QP backend found no point satisfying the constraints.
	ErrInfeasible = errors.New("dynamo: problem infeasible")

	// ErrNotConvex indicates a cost matrix that is not positive (semi-)definite.
	ErrNotConvex = errors.New("dynamo: cost matrix is not positive definite")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates mismatched matrix or vector dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrInvalidState indicates a vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// SolveError wraps a solver failure with the operation that produced it.
type SolveError struct {
	Op      string
	Backend string
	Wrapped error
}

func (e *SolveError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Wrapped)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Backend, e.Wrapped)
}

func (e *SolveError) Unwrap() error {
	return e.Wrapped
}

// TickError records a failed tick of a simulation loop.
type TickError struct {
	Time    float64
	Step    int
	Wrapped error
}

func (e TickError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e TickError) Unwrap() error {
	return e.Wrapped
}

// Dimensionf returns an error wrapping ErrDimensionMismatch.
func Dimensionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDimensionMismatch, fmt.Sprintf(format, args...))
}

// Boundsf returns an error wrapping ErrParameterBounds.
func Boundsf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParameterBounds, fmt.Sprintf(format, args...))
}
