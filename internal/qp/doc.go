// Package qp provides convex quadratic programming backends.
//
// Every backend solves
//
//	minimize    ½ xᵀPx + qᵀx
//	subject to  Gx ≤ h
//
// and implements the [Solver] interface, so the velocity solver and the
// preview controllers never depend on a concrete algorithm:
//
//   - [ADMM]: operator-splitting solver with over-relaxation, adaptive
//     step size, an infeasibility certificate and active-set polishing
//   - [SolveUnconstrained]: direct Cholesky solve used when G is empty
//
// # Backend selection
//
//	solver, err := qp.New("admm", qp.DefaultSettings())
//	res, err := solver.Solve(&qp.Problem{P: P, Q: q, G: G, H: h})
//
// A failed solve returns an error wrapping [dynamo.ErrInfeasible] or
// [dynamo.ErrNotConvex]. There is no cancellation: a call runs until it
// converges, proves infeasibility or exhausts its iteration budget.
package qp
