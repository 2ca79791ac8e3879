package preview

import (
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/qpctl/internal/dynamo"
)

// Plan is a solved control trajectory. It is never mutated after
// ComputeControl returns it.
type Plan struct {
	ID        uuid.UUID
	U         []float64
	UDim      int
	Timestep  float64
	SolveTime time.Duration
	BuildTime time.Duration
}

// NbSteps returns the number of control blocks in U.
func (p *Plan) NbSteps() int {
	if p.UDim == 0 {
		return 0
	}
	return len(p.U) / p.UDim
}

// Control returns a copy of block k, or nil when k is out of range.
func (p *Plan) Control(k int) dynamo.Control {
	if k < 0 || k >= p.NbSteps() {
		return nil
	}
	u := make(dynamo.Control, p.UDim)
	copy(u, p.U[k*p.UDim:(k+1)*p.UDim])
	return u
}

// Duration returns the time span covered by the plan.
func (p *Plan) Duration() float64 {
	return float64(p.NbSteps()) * p.Timestep
}
