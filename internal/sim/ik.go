package sim

import (
	"context"
	"errors"

	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/robot"
	"gonum.org/v1/gonum/mat"
)

// Arm is a kinematic plant integrating active-DOF joint velocities.
type Arm interface {
	robot.Model
	Q() []float64
	Integrate(qd mat.Vector, dt float64) error
}

// IKRunner ticks a velocity solver and integrates its output on an arm.
// States are full configurations, controls active-DOF velocities.
type IKRunner struct {
	solver *ik.VelocitySolver
	arm    Arm
	opts   options
}

func NewIKRunner(solver *ik.VelocitySolver, arm Arm, opts ...Option) *IKRunner {
	return &IKRunner{solver: solver, arm: arm, opts: buildOptions(opts)}
}

func (r *IKRunner) Run(ctx context.Context, cfg Config) (*dynamo.Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	steps := cfg.steps()
	rec := newRecorder(r.opts, steps)
	pace := newPacer(cfg)
	defer pace.stop()

	x := dynamo.State(r.arm.Q())
	rec.start(x)
	last := mat.NewVecDense(len(r.arm.ActiveDOFs()), nil)
	t := 0.0

	for i := 0; i < steps; i++ {
		if err := pace.wait(ctx); err != nil {
			return rec.result, err
		}

		qd, err := r.solver.ComputeVelocity(cfg.Dt)
		if err != nil {
			tickErr := dynamo.TickError{Time: t, Step: i, Wrapped: err}
			if !cfg.HoldOnInfeasible || !errors.Is(err, dynamo.ErrInfeasible) {
				return rec.result, tickErr
			}
			rec.result.Errors = append(rec.result.Errors, tickErr)
			r.opts.logger.Warn("ik tick infeasible, holding last command", "step", i, "t", t, "error", err)
			qd = last
		}
		if err := r.arm.Integrate(qd, cfg.Dt); err != nil {
			return rec.result, dynamo.TickError{Time: t, Step: i, Wrapped: err}
		}
		last = qd

		next := dynamo.State(r.arm.Q())
		rec.step(x, dynamo.Control(dynamo.Slice(qd)), t, next, t+cfg.Dt)
		x = next
		t += cfg.Dt
	}
	return rec.finish(x), nil
}
