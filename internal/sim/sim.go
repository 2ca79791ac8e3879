// Package sim runs the solvers in closed loop against simple plants: the
// velocity solver against a kinematic arm, the preview controller against
// a double integrator fed through a preview buffer.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/telemetry"
)

type Config struct {
	Dt       float64
	Duration float64

	// HoldOnInfeasible repeats the previous command on a failed tick
	// instead of stopping the run.
	HoldOnInfeasible bool

	// Realtime paces ticks to the wall clock.
	Realtime bool
}

func (c Config) validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Duration)
	}
	return nil
}

func (c Config) steps() int {
	return int(math.Round(c.Duration / c.Dt))
}

type options struct {
	logger    *slog.Logger
	telemetry *telemetry.Metrics
	metrics   []dynamo.Metric
	observers []dynamo.Observer
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithTelemetry(m *telemetry.Metrics) Option {
	return func(o *options) { o.telemetry = m }
}

func WithMetric(m dynamo.Metric) Option {
	return func(o *options) { o.metrics = append(o.metrics, m) }
}

func WithObserver(obs dynamo.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// recorder accumulates a Result and feeds metrics and observers.
type recorder struct {
	opts   options
	result *dynamo.Result
}

func newRecorder(o options, steps int) *recorder {
	for _, m := range o.metrics {
		m.Reset()
	}
	return &recorder{
		opts: o,
		result: &dynamo.Result{
			States:   make([]dynamo.State, 0, steps+1),
			Controls: make([]dynamo.Control, 0, steps),
			Times:    make([]float64, 0, steps+1),
			Metrics:  make(map[string]float64),
			Errors:   make([]error, 0),
		},
	}
}

func (r *recorder) start(x dynamo.State) {
	r.result.States = append(r.result.States, x.Clone())
	r.result.Times = append(r.result.Times, 0)
}

// step records command u applied at state x from time t, reaching next at t+dt.
func (r *recorder) step(x dynamo.State, u dynamo.Control, t float64, next dynamo.State, tNext float64) {
	for _, m := range r.opts.metrics {
		m.Observe(x, u, t)
	}
	for _, obs := range r.opts.observers {
		obs.OnStep(x, u, t)
	}
	r.result.States = append(r.result.States, next.Clone())
	r.result.Controls = append(r.result.Controls, u.Clone())
	r.result.Times = append(r.result.Times, tNext)
}

func (r *recorder) finish(x dynamo.State) *dynamo.Result {
	for _, m := range r.opts.metrics {
		m.Observe(x, nil, r.result.Times[len(r.result.Times)-1])
	}
	for _, m := range r.opts.metrics {
		r.result.Metrics[m.Name()] = m.Value()
	}
	return r.result
}

// pacer blocks until the next tick when running in real time.
type pacer struct {
	ticker *time.Ticker
}

func newPacer(cfg Config) *pacer {
	if !cfg.Realtime {
		return &pacer{}
	}
	return &pacer{ticker: time.NewTicker(time.Duration(cfg.Dt * float64(time.Second)))}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.ticker == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *pacer) stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}
