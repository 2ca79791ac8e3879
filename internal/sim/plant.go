package sim

import (
	"github.com/san-kum/qpctl/internal/dynamo"
)

// DoubleIntegrator is a point mass in dim dimensions with state [p; v]
// driven by acceleration.
type DoubleIntegrator struct {
	dim int
	x   dynamo.State
}

func NewDoubleIntegrator(dim int, x0 []float64) *DoubleIntegrator {
	x := make(dynamo.State, 2*dim)
	copy(x, x0)
	return &DoubleIntegrator{dim: dim, x: x}
}

// Step integrates a constant acceleration exactly over dt.
func (d *DoubleIntegrator) Step(u dynamo.Control, dt float64) {
	for i := 0; i < d.dim; i++ {
		a := 0.0
		if i < len(u) {
			a = u[i]
		}
		d.x[i] += d.x[d.dim+i]*dt + 0.5*a*dt*dt
		d.x[d.dim+i] += a * dt
	}
}

func (d *DoubleIntegrator) State() dynamo.State { return d.x.Clone() }

func (d *DoubleIntegrator) Dim() int { return d.dim }
