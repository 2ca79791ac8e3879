package preview

import (
	"math"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultWx = 1000.0
	DefaultWu = 1.0
)

// System describes one preview problem.
//
// G has either u_dim columns, in which case G·u_k ≤ H is enforced at every
// step, or u_dim·NbSteps columns constraining the stacked controls. E has
// PosDim columns and bounds the leading PosDim rows of every state x_k for
// k = 0..NbSteps−1.
type System struct {
	A, B    *mat.Dense
	XInit   []float64
	XGoal   []float64
	NbSteps int

	G *mat.Dense
	H []float64
	E *mat.Dense
	F []float64

	// PosDim defaults to half the state dimension.
	PosDim int

	// Wx and Wu default to DefaultWx and DefaultWu when both are zero.
	Wx, Wu float64

	// Per-component weights. Honored by Weighted only.
	WxDiag []float64
	WuDiag []float64

	// Timestep is the duration of one control block.
	Timestep float64
}

// Dims returns the state and control dimensions.
func (s *System) Dims() (xDim, uDim int) {
	xDim, _ = s.A.Dims()
	_, uDim = s.B.Dims()
	return xDim, uDim
}

func (s *System) withDefaults() System {
	out := *s
	if out.Wx == 0 && out.Wu == 0 {
		out.Wx, out.Wu = DefaultWx, DefaultWu
	}
	if out.PosDim == 0 && out.A != nil {
		xDim, _ := out.A.Dims()
		out.PosDim = xDim / 2
		if out.PosDim == 0 {
			out.PosDim = xDim
		}
	}
	return out
}

// Validate checks dimensions and parameter ranges.
func (s *System) Validate() error {
	if s.A == nil || s.B == nil {
		return dynamo.Dimensionf("preview: A and B are required")
	}
	ar, ac := s.A.Dims()
	if ar != ac {
		return dynamo.Dimensionf("preview: A is %dx%d, want square", ar, ac)
	}
	xDim := ar
	br, uDim := s.B.Dims()
	if br != xDim {
		return dynamo.Dimensionf("preview: B has %d rows, want %d", br, xDim)
	}
	if len(s.XInit) != xDim || len(s.XGoal) != xDim {
		return dynamo.Dimensionf("preview: x_init/x_goal have %d/%d entries, want %d", len(s.XInit), len(s.XGoal), xDim)
	}
	if s.NbSteps < 1 {
		return dynamo.Boundsf("preview: nb_steps %d must be at least 1", s.NbSteps)
	}
	if !(s.Timestep > 0) {
		return dynamo.Boundsf("preview: timestep %g must be positive", s.Timestep)
	}
	if !(s.Wx >= 0) || !(s.Wu > 0) {
		return dynamo.Boundsf("preview: weights wx=%g wu=%g (need wx >= 0, wu > 0)", s.Wx, s.Wu)
	}
	if s.G != nil {
		gr, gc := s.G.Dims()
		if gc != uDim && gc != uDim*s.NbSteps {
			return dynamo.Dimensionf("preview: G has %d columns, want %d or %d", gc, uDim, uDim*s.NbSteps)
		}
		if len(s.H) != gr {
			return dynamo.Dimensionf("preview: G has %d rows, h has %d", gr, len(s.H))
		}
	} else if len(s.H) != 0 {
		return dynamo.Dimensionf("preview: h given without G")
	}
	if s.E != nil {
		if s.PosDim < 1 || s.PosDim > xDim {
			return dynamo.Boundsf("preview: pos_dim %d not in [1, %d]", s.PosDim, xDim)
		}
		er, ec := s.E.Dims()
		if ec != s.PosDim {
			return dynamo.Dimensionf("preview: E has %d columns, want pos_dim %d", ec, s.PosDim)
		}
		if len(s.F) != er {
			return dynamo.Dimensionf("preview: E has %d rows, f has %d", er, len(s.F))
		}
	} else if len(s.F) != 0 {
		return dynamo.Dimensionf("preview: f given without E")
	}
	if s.WxDiag != nil && len(s.WxDiag) != xDim {
		return dynamo.Dimensionf("preview: wx vector has %d entries, want %d", len(s.WxDiag), xDim)
	}
	if s.WuDiag != nil && len(s.WuDiag) != uDim {
		return dynamo.Dimensionf("preview: wu vector has %d entries, want %d", len(s.WuDiag), uDim)
	}
	for _, w := range s.WxDiag {
		if !(w >= 0) || math.IsInf(w, 0) {
			return dynamo.Boundsf("preview: wx vector entry %g", w)
		}
	}
	for _, w := range s.WuDiag {
		if !(w > 0) || math.IsInf(w, 0) {
			return dynamo.Boundsf("preview: wu vector entry %g", w)
		}
	}
	return nil
}

// DoubleIntegrator returns the discrete dynamics of dim decoupled double
// integrators with state [p; v] and acceleration input over timestep T.
func DoubleIntegrator(dim int, T float64) (A, B *mat.Dense) {
	A = mat.NewDense(2*dim, 2*dim, nil)
	B = mat.NewDense(2*dim, dim, nil)
	for i := 0; i < dim; i++ {
		A.Set(i, i, 1)
		A.Set(i, dim+i, T)
		A.Set(dim+i, dim+i, 1)
		B.Set(i, i, T*T/2)
		B.Set(dim+i, i, T)
	}
	return A, B
}

// BoxConstraint returns the per-step inequality lo ≤ u_k ≤ hi.
func BoxConstraint(uDim int, lo, hi float64) (*mat.Dense, []float64) {
	g := mat.NewDense(2*uDim, uDim, nil)
	h := make([]float64, 2*uDim)
	for i := 0; i < uDim; i++ {
		g.Set(i, i, 1)
		h[i] = hi
		g.Set(uDim+i, i, -1)
		h[uDim+i] = -lo
	}
	return g, h
}
