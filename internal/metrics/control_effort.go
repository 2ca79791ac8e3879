package metrics

import (
	"math"

	"github.com/san-kum/qpctl/internal/dynamo"
)

// ControlEffort is the RMS magnitude of the command over the run. Joint
// velocities and preview accelerations are both applied with a zero-order
// hold, so each command is weighted by how long it was held: the time until
// the next observation. A command with no later observation adds nothing.
type ControlEffort struct {
	energy  float64 // ∫‖u‖² dt
	span    float64
	held    float64
	since   float64
	holding bool
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(_ dynamo.State, u dynamo.Control, t float64) {
	if c.holding && t > c.since {
		c.energy += c.held * (t - c.since)
		c.span += t - c.since
	}
	if len(u) == 0 {
		c.holding = false
		return
	}
	sq := 0.0
	for _, v := range u {
		sq += v * v
	}
	c.held, c.since, c.holding = sq, t, true
}

func (c *ControlEffort) Value() float64 {
	if c.span == 0 {
		return 0
	}
	return math.Sqrt(c.energy / c.span)
}

func (c *ControlEffort) Reset() { *c = ControlEffort{} }
