package preview

import (
	"log/slog"

	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/telemetry"
)

type options struct {
	backend qp.Solver
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures controllers and buffers. Buffers ignore the backend.
type Option func(*options)

func WithBackend(b qp.Solver) Option {
	return func(o *options) { o.backend = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = qp.NewADMM(qp.DefaultSettings())
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
