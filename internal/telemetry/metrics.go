package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the solver instruments. A nil *Metrics records nothing.
type Metrics struct {
	SolveDuration metric.Float64Histogram
	BuildDuration metric.Float64Histogram
	Infeasible    metric.Int64Counter
	ActiveTasks   metric.Int64UpDownCounter
	BufferStarved metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.SolveDuration, err = meter.Float64Histogram("qpctl.solve.duration",
		metric.WithDescription("QP solve duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.BuildDuration, err = meter.Float64Histogram("qpctl.build.duration",
		metric.WithDescription("QP assembly plus solve duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.Infeasible, err = meter.Int64Counter("qpctl.solve.infeasible",
		metric.WithDescription("Solves that failed to find a feasible point"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveTasks, err = meter.Int64UpDownCounter("qpctl.tasks.active",
		metric.WithDescription("Tasks registered in the velocity solver"),
	)
	if err != nil {
		return nil, err
	}

	m.BufferStarved, err = meter.Int64Counter("qpctl.buffer.starved",
		metric.WithDescription("Preview buffer pulls that returned zero control"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSolve records one solve of component. build covers assembly and solve.
func (m *Metrics) RecordSolve(component string, build, solve time.Duration, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("component", component))
	if err != nil {
		m.Infeasible.Add(ctx, 1, attrs)
		return
	}
	m.SolveDuration.Record(ctx, solve.Seconds(), attrs)
	m.BuildDuration.Record(ctx, build.Seconds(), attrs)
}

func (m *Metrics) TasksChanged(delta int64) {
	if m == nil {
		return
	}
	m.ActiveTasks.Add(context.Background(), delta)
}

func (m *Metrics) Starved() {
	if m == nil {
		return
	}
	m.BufferStarved.Add(context.Background(), 1)
}
