// Package preview implements receding-horizon preview control for linear
// systems and the buffer that replays its plans tick by tick.
//
// A [Controller] condenses the dynamics x_{k+1} = A·x_k + B·u_k over a
// fixed horizon into x_N = Φ·x_init + Ψ·U, where U stacks every control of
// the horizon, then solves one QP trading terminal state error against
// control effort:
//
//	min  wx·‖Ψ·U − (x_goal − Φ·x_init)‖² + wu·‖U‖²
//	s.t. G·U ≤ h, E·p_k ≤ f for every step k
//
// The resulting [Plan] is handed to a [Buffer], which a real-time loop
// ticks at its own rate. The buffer holds each control sample for one plan
// timestep and swaps plans atomically when a planner installs a new one.
package preview
