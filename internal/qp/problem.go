package qp

import (
	"math"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Problem is a dense convex QP. G and H may both be nil.
type Problem struct {
	P *mat.SymDense
	Q *mat.VecDense
	G *mat.Dense
	H *mat.VecDense
}

// Dims returns the number of variables and inequality rows.
func (p *Problem) Dims() (n, m int) {
	n = p.Q.Len()
	if p.G != nil && !p.G.IsEmpty() {
		m, _ = p.G.Dims()
	}
	return n, m
}

// Validate checks that all blocks agree in size.
func (p *Problem) Validate() error {
	if p.P == nil || p.Q == nil {
		return dynamo.Dimensionf("qp: cost matrix and vector are required")
	}
	n := p.Q.Len()
	if p.P.SymmetricDim() != n {
		return dynamo.Dimensionf("qp: P is %dx%d but q has %d entries", p.P.SymmetricDim(), p.P.SymmetricDim(), n)
	}
	if p.G == nil || p.G.IsEmpty() {
		if p.H != nil && !p.H.IsEmpty() {
			return dynamo.Dimensionf("qp: h given without G")
		}
		return nil
	}
	m, c := p.G.Dims()
	if c != n {
		return dynamo.Dimensionf("qp: G has %d columns, want %d", c, n)
	}
	if p.H == nil || p.H.Len() != m {
		return dynamo.Dimensionf("qp: G has %d rows but h does not match", m)
	}
	return nil
}

// Objective evaluates ½ xᵀPx + qᵀx.
func (p *Problem) Objective(x mat.Vector) float64 {
	return 0.5*mat.Inner(x, p.P, x) + mat.Dot(p.Q, x)
}

// MaxViolation returns max(Gx − h, 0) over all rows.
func (p *Problem) MaxViolation(x mat.Vector) float64 {
	_, m := p.Dims()
	if m == 0 {
		return 0
	}
	var gx mat.VecDense
	gx.MulVec(p.G, x)
	worst := 0.0
	for i := 0; i < m; i++ {
		worst = math.Max(worst, gx.AtVec(i)-p.H.AtVec(i))
	}
	return worst
}

type Status int

const (
	StatusSolved Status = iota
	// StatusInaccurate is reported when the iteration budget ran out on a
	// primal feasible iterate that is not yet optimal.
	StatusInaccurate
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusInaccurate:
		return "inaccurate"
	default:
		return "unknown"
	}
}

// Result of a successful solve.
type Result struct {
	X          *mat.VecDense
	Y          *mat.VecDense
	Status     Status
	Iterations int
	Polished   bool
	Objective  float64
}

type Solver interface {
	Name() string
	Solve(p *Problem) (*Result, error)
}

func infNorm(v mat.Vector) float64 {
	m := 0.0
	for i := 0; i < v.Len(); i++ {
		if a := math.Abs(v.AtVec(i)); a > m {
			m = a
		}
	}
	return m
}
