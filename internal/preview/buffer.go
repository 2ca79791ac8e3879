package preview

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/telemetry"
)

// Callback receives the held control and the tick duration.
type Callback func(u dynamo.Control, dt float64)

// Buffer replays the latest plan to a callback, one tick at a time. A
// planner goroutine installs plans with UpdatePreview while the tick
// goroutine calls OnTick.
type Buffer struct {
	callback Callback
	uDim     int
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	mu    sync.Mutex
	plan  *Plan
	index int

	// Owned by the tick goroutine.
	current dynamo.Control
	remTime float64
}

func NewBuffer(uDim int, callback Callback, opts ...Option) *Buffer {
	o := buildOptions(opts)
	return &Buffer{
		callback: callback,
		uDim:     uDim,
		logger:   o.logger,
		metrics:  o.metrics,
		current:  make(dynamo.Control, uDim),
	}
}

// UpdatePreview replaces the plan and restarts from its first sample. A
// plan with the wrong control dimension or a non-finite sample is rejected
// and the current one kept.
func (b *Buffer) UpdatePreview(plan *Plan) error {
	if plan != nil {
		if plan.UDim != b.uDim {
			return dynamo.Dimensionf("preview: plan control dimension %d, buffer expects %d", plan.UDim, b.uDim)
		}
		if !dynamo.State(plan.U).IsValid() {
			return fmt.Errorf("preview: plan %s: %w", plan.ID, dynamo.ErrInvalidState)
		}
		b.logger.Debug("plan installed", "plan", plan.ID.String(), "samples", plan.NbSteps(), "duration", plan.Duration())
	}
	b.mu.Lock()
	b.plan = plan
	b.index = 0
	b.mu.Unlock()
	return nil
}

// NextControl pops the next sample and its duration. Without a plan, or
// once the plan is exhausted, it returns a zero control held for 0s; an
// exhausted plan is dropped.
func (b *Buffer) NextControl() (dynamo.Control, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.plan == nil {
		return make(dynamo.Control, b.uDim), 0
	}
	u := b.plan.Control(b.index)
	if u == nil {
		b.logger.Debug("preview exhausted", "plan", b.plan.ID.String(), "samples", b.index)
		b.plan = nil
		return make(dynamo.Control, b.uDim), 0
	}
	b.index++
	return u, b.plan.Timestep
}

// holdSlack absorbs the rounding left in remTime after subtracting dt
// repeatedly, so a sample lasting k ticks is served exactly k times.
const holdSlack = 1e-9

// OnTick advances the buffer by dt and invokes the callback with the held
// sample. The callback runs without the buffer lock.
func (b *Buffer) OnTick(dt float64) {
	if b.remTime < dt*(1-holdSlack) {
		u, hold := b.NextControl()
		if hold == 0 {
			b.metrics.Starved()
		}
		b.current = u
		b.remTime = hold
	}
	if b.callback != nil {
		b.callback(b.current, dt)
	}
	b.remTime -= dt
}

// Current returns the sample held by the last tick.
func (b *Buffer) Current() dynamo.Control {
	return b.current.Clone()
}

// Pending reports the number of samples left in the current plan.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.plan == nil {
		return 0
	}
	return b.plan.NbSteps() - b.index
}
