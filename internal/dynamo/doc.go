// Package dynamo provides the shared primitives of the control core.
//
// The package defines the vector and interface types used across the
// velocity solver, the preview controller and the simulation harness:
//
//   - [State]: vector representing a configuration or plant state
//   - [Control]: vector representing a command (joint velocity, acceleration)
//   - [Metric]: observer accumulating a scalar over a run
//   - [Observer]: per-tick hook used by the simulation loops
//
// Errors shared by every solver live here as well so callers can use
// [errors.Is] without importing the producing package:
//
//	qd, err := solver.ComputeVelocity(dt)
//	if errors.Is(err, dynamo.ErrInfeasible) {
//		// hold the previous command
//	}
//
// Matrix helpers ([Eye], [VecOf], [Slice]) wrap gonum/mat so the numeric
// packages share one convention for converting between plain slices and
// gonum vectors.
package dynamo
