// Package ik implements a multi-task velocity solver.
//
// Tasks are registered by name on a [VelocitySolver]. Each control tick,
// [VelocitySolver.ComputeVelocity] blends every task into one quadratic
// program (weighted Gauss-Newton least squares) constrained by the joint
// position and velocity limits of the robot model, and returns the joint
// velocity for the active DOFs.
//
// Tasks may be added or removed from any goroutine while a tick loop calls
// ComputeVelocity: the registry is read under a mutex and the QP is solved
// after the lock is released.
package ik
