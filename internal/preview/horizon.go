package preview

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/qp"
	"gonum.org/v1/gonum/mat"
)

// zeroRowSlack absorbs solver tolerance in constraints that U cannot
// affect, such as the state bound at k = 0 after a previous plan.
const zeroRowSlack = 1e-6

// ErrNotBuilt is returned by ComputeControl before ComputeDynamics ran.
var ErrNotBuilt = errors.New("preview: compute dynamics before compute control")

// horizon holds the condensed dynamics shared by both controllers.
type horizon struct {
	sys    System
	xDim   int
	uDim   int
	uTotal int
	opts   options

	phi, psi   *mat.Dense
	stateC     *mat.Dense
	stateD     []float64
	built      bool
	buildStart time.Time
	plan       *Plan
}

func newHorizon(sys System, opts []Option) (*horizon, error) {
	s := sys.withDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	xDim, uDim := s.Dims()
	return &horizon{
		sys:    s,
		xDim:   xDim,
		uDim:   uDim,
		uTotal: uDim * s.NbSteps,
		opts:   buildOptions(opts),
	}, nil
}

// computeDynamics iterates x_k = Φ_k·x_init + Ψ_k·U from Φ_0 = I, Ψ_0 = 0
// and collects E·p_k ≤ f for k = 0..N−1 along the way.
func (h *horizon) computeDynamics() {
	h.buildStart = time.Now()
	s := h.sys
	pos := s.PosDim
	xInit := dynamo.VecOf(s.XInit)

	phi := dynamo.Eye(h.xDim)
	psi := mat.NewDense(h.xDim, h.uTotal, nil)
	var blocks []*mat.Dense
	var d []float64
	for k := 0; k < s.NbSteps; k++ {
		if s.E != nil {
			// (E·Ψ_k[:pos])·U ≤ f − (E·Φ_k[:pos])·x_init
			var c, ePhi mat.Dense
			c.Mul(s.E, psi.Slice(0, pos, 0, h.uTotal))
			ePhi.Mul(s.E, phi.Slice(0, pos, 0, h.xDim))
			var ex mat.VecDense
			ex.MulVec(&ePhi, xInit)
			blocks = append(blocks, &c)
			for i, f := range s.F {
				d = append(d, f-ex.AtVec(i))
			}
		}
		var nextPhi, nextPsi mat.Dense
		nextPhi.Mul(s.A, phi)
		nextPsi.Mul(s.A, psi)
		nextPsi.Slice(0, h.xDim, h.uDim*k, h.uDim*(k+1)).(*mat.Dense).Copy(s.B)
		phi, psi = &nextPhi, &nextPsi
	}
	h.phi, h.psi = phi, psi
	h.stateC = dynamo.VStack(blocks...)
	h.stateD = d
	h.built = true
}

// cost returns P = Ψᵀ·Wx·Ψ + Wu and q = −Ψᵀ·Wx·(x_goal − Φ·x_init), with
// Wx and Wu diagonal. wu is repeated over the horizon.
func (h *horizon) cost(wx, wu []float64) (*mat.SymDense, *mat.VecDense) {
	var phiX mat.VecDense
	phiX.MulVec(h.phi, dynamo.VecOf(h.sys.XInit))
	b := dynamo.VecOf(h.sys.XGoal)
	b.SubVec(b, &phiX)

	wPsi := mat.DenseCopyOf(h.psi)
	wb := mat.NewVecDense(h.xDim, nil)
	for i := 0; i < h.xDim; i++ {
		row := wPsi.RawRowView(i)
		for j := range row {
			row[j] *= wx[i]
		}
		wb.SetVec(i, wx[i]*b.AtVec(i))
	}

	var full mat.Dense
	full.Mul(h.psi.T(), wPsi)
	p := mat.NewSymDense(h.uTotal, nil)
	for i := 0; i < h.uTotal; i++ {
		for j := i; j < h.uTotal; j++ {
			p.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
		p.SetSym(i, i, p.At(i, i)+wu[i%h.uDim])
	}

	q := mat.NewVecDense(h.uTotal, nil)
	q.MulVec(h.psi.T(), wb)
	q.ScaleVec(-1, q)
	return p, q
}

// constraints stacks the control inequalities, expanded over the horizon
// when G is per-step, with the state inequalities when withState is set.
// All-zero rows are dropped; one with a negative bound makes the problem
// infeasible outright.
func (h *horizon) constraints(withState bool) (*mat.Dense, *mat.VecDense, error) {
	var ctrl *mat.Dense
	var d []float64
	if g := h.sys.G; g != nil {
		gr, gc := g.Dims()
		if gc == h.uTotal {
			ctrl = g
			d = append(d, h.sys.H...)
		} else {
			ctrl = mat.NewDense(gr*h.sys.NbSteps, h.uTotal, nil)
			for k := 0; k < h.sys.NbSteps; k++ {
				ctrl.Slice(gr*k, gr*(k+1), h.uDim*k, h.uDim*(k+1)).(*mat.Dense).Copy(g)
				d = append(d, h.sys.H...)
			}
		}
	}
	stacked := ctrl
	if withState && h.stateC != nil {
		stacked = dynamo.VStack(ctrl, h.stateC)
		d = append(d, h.stateD...)
	}
	if stacked == nil {
		return nil, nil, nil
	}

	rows, cols := stacked.Dims()
	keep := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		zero := true
		for _, v := range stacked.RawRowView(i) {
			if v != 0 {
				zero = false
				break
			}
		}
		if !zero {
			keep = append(keep, i)
			continue
		}
		if d[i] < -zeroRowSlack*math.Max(1, math.Abs(d[i])) {
			return nil, nil, fmt.Errorf("%w: constraint row %d requires 0 <= %g", dynamo.ErrInfeasible, i, d[i])
		}
	}
	if len(keep) == 0 {
		return nil, nil, nil
	}
	g := mat.NewDense(len(keep), cols, nil)
	hv := mat.NewVecDense(len(keep), nil)
	for r, i := range keep {
		g.SetRow(r, stacked.RawRowView(i))
		hv.SetVec(r, d[i])
	}
	return g, hv, nil
}

func (h *horizon) solve(component string, withState bool, wx, wu []float64) (*Plan, error) {
	if !h.built {
		return nil, ErrNotBuilt
	}
	backend := h.opts.backend
	fail := func(err error) error {
		if !errors.Is(err, dynamo.ErrInfeasible) {
			err = fmt.Errorf("%w: %w", dynamo.ErrInfeasible, err)
		}
		h.opts.metrics.RecordSolve(component, 0, 0, err)
		return &dynamo.SolveError{Op: "preview: compute control", Backend: backend.Name(), Wrapped: err}
	}

	p, q := h.cost(wx, wu)
	g, hv, err := h.constraints(withState)
	if err != nil {
		return nil, fail(err)
	}

	solveStart := time.Now()
	res, err := backend.Solve(&qp.Problem{P: p, Q: q, G: g, H: hv})
	done := time.Now()
	if err != nil {
		return nil, fail(err)
	}

	plan := &Plan{
		ID:        uuid.New(),
		U:         dynamo.Slice(res.X),
		UDim:      h.uDim,
		Timestep:  h.sys.Timestep,
		SolveTime: done.Sub(solveStart),
		BuildTime: done.Sub(h.buildStart),
	}
	h.plan = plan
	h.opts.metrics.RecordSolve(component, plan.BuildTime, plan.SolveTime, nil)
	h.opts.logger.Debug("preview plan computed",
		"component", component,
		"plan", plan.ID.String(),
		"steps", h.sys.NbSteps,
		"status", res.Status.String(),
		"solve_time", plan.SolveTime,
		"build_time", plan.BuildTime,
	)
	return plan, nil
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
