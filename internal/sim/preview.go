package sim

import (
	"context"
	"sync"

	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/preview"
)

// Planner builds a preview controller for the given initial state.
type Planner func(xInit []float64) (preview.Controller, error)

// PreviewConfig extends Config with the re-planning schedule.
type PreviewConfig struct {
	Config
	XInit []float64

	// Replan is the number of ticks between two plans.
	Replan int

	// Sync plans on the tick goroutine instead of a planner goroutine.
	// The planner goroutine is handed the state of a replanning tick as
	// soon as the tick before it has stepped the plant, and plans while
	// the loop records and paces. Offline runs wait for that plan at the
	// replanning tick, so both modes install the same plans at the same
	// ticks. Realtime runs never wait: a late plan is installed at the
	// first tick it is ready, one or more ticks after the state it was
	// computed from.
	Sync bool
}

// PreviewRunner closes the loop between a preview planner and a double
// integrator through a preview buffer.
type PreviewRunner struct {
	planner Planner
	dim     int
	opts    options
	bufOpts []preview.Option
}

func NewPreviewRunner(planner Planner, dim int, opts ...Option) *PreviewRunner {
	o := buildOptions(opts)
	return &PreviewRunner{
		planner: planner,
		dim:     dim,
		opts:    o,
		bufOpts: []preview.Option{preview.WithLogger(o.logger), preview.WithMetrics(o.telemetry)},
	}
}

func (r *PreviewRunner) plan(x []float64) (*preview.Plan, error) {
	ctrl, err := r.planner(x)
	if err != nil {
		return nil, err
	}
	ctrl.ComputeDynamics()
	return ctrl.ComputeControl()
}

func (r *PreviewRunner) Run(ctx context.Context, cfg PreviewConfig) (*dynamo.Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Replan < 1 {
		cfg.Replan = 1
	}
	steps := cfg.steps()
	rec := newRecorder(r.opts, steps)
	pace := newPacer(cfg.Config)
	defer pace.stop()

	plant := NewDoubleIntegrator(r.dim, cfg.XInit)
	buf := preview.NewBuffer(r.dim, func(u dynamo.Control, dt float64) {
		plant.Step(u, dt)
	}, r.bufOpts...)

	var planErrs []error
	install := func(step int, p *preview.Plan, err error) {
		if err == nil {
			err = buf.UpdatePreview(p)
		}
		if err != nil {
			r.opts.logger.Warn("preview planning failed", "step", step, "error", err)
			planErrs = append(planErrs, dynamo.TickError{Time: float64(step) * cfg.Dt, Step: step, Wrapped: err})
		}
	}

	type request struct {
		step int
		x    dynamo.State
	}
	type response struct {
		step int
		plan *preview.Plan
		err  error
	}
	var (
		requests chan request
		results  chan response
		pending  bool
		wg       sync.WaitGroup
	)
	if !cfg.Sync {
		// At most one request is outstanding, so neither send blocks.
		requests = make(chan request, 1)
		results = make(chan response, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range requests {
				p, err := r.plan(req.x)
				results <- response{step: req.step, plan: p, err: err}
			}
		}()
	}
	stopPlanner := func() {
		if requests != nil {
			close(requests)
			wg.Wait()
			requests = nil
		}
	}
	defer stopPlanner()
	receive := func(res response, i int) {
		pending = false
		if lag := i - res.step; lag > 0 {
			r.opts.logger.Debug("late plan installed", "step", res.step, "lag_ticks", lag)
		}
		install(res.step, res.plan, res.err)
	}

	x := plant.State()
	rec.start(x)
	t := 0.0
	p, err := r.plan(x)
	install(0, p, err)

	for i := 0; i < steps; i++ {
		if err := pace.wait(ctx); err != nil {
			return rec.result, err
		}
		switch {
		case cfg.Sync && i > 0 && i%cfg.Replan == 0:
			p, err := r.plan(x)
			install(i, p, err)
		case pending && !cfg.Realtime && i%cfg.Replan == 0:
			select {
			case res := <-results:
				receive(res, i)
			case <-ctx.Done():
				return rec.result, ctx.Err()
			}
		case pending:
			select {
			case res := <-results:
				receive(res, i)
			default:
			}
		}

		buf.OnTick(cfg.Dt)
		next := plant.State()
		rec.step(x, buf.Current(), t, next, t+cfg.Dt)
		x = next
		t += cfg.Dt

		// A request still pending here is running late; skip this round.
		if !cfg.Sync && !pending && (i+1)%cfg.Replan == 0 && i+1 < steps {
			requests <- request{step: i + 1, x: x.Clone()}
			pending = true
		}
	}

	stopPlanner()
	rec.result.Errors = append(rec.result.Errors, planErrs...)
	return rec.finish(x), nil
}
