package qp

import (
	"fmt"
	"math"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Settings tunes the ADMM backend.
type Settings struct {
	Rho           float64 `yaml:"rho"`
	Sigma         float64 `yaml:"sigma"`
	Alpha         float64 `yaml:"alpha"`
	EpsAbs        float64 `yaml:"eps_abs"`
	EpsRel        float64 `yaml:"eps_rel"`
	EpsInfeasible float64 `yaml:"eps_infeasible"`
	MaxIter       int     `yaml:"max_iter"`
	CheckEvery    int     `yaml:"check_every"`
	AdaptiveRho   bool    `yaml:"adaptive_rho"`
	Polish        bool    `yaml:"polish"`
}

func DefaultSettings() Settings {
	return Settings{
		Rho:           0.1,
		Sigma:         1e-6,
		Alpha:         1.6,
		EpsAbs:        1e-6,
		EpsRel:        1e-6,
		EpsInfeasible: 1e-6,
		MaxIter:       10000,
		CheckEvery:    10,
		AdaptiveRho:   true,
		Polish:        true,
	}
}

const (
	rhoMin         = 1e-6
	rhoMax         = 1e6
	rhoAdaptFactor = 5.0
	polishTol      = 1e-9
)

// ADMM solves QPs with the alternating direction method of multipliers on
// the splitting z = Gx, z ≤ h. Unconstrained problems are forwarded to
// SolveUnconstrained.
type ADMM struct {
	settings Settings
}

func NewADMM(s Settings) *ADMM {
	d := DefaultSettings()
	if s.Rho <= 0 {
		s.Rho = d.Rho
	}
	if s.Sigma <= 0 {
		s.Sigma = d.Sigma
	}
	if s.Alpha <= 0 || s.Alpha >= 2 {
		s.Alpha = d.Alpha
	}
	if s.EpsAbs <= 0 {
		s.EpsAbs = d.EpsAbs
	}
	if s.EpsRel < 0 {
		s.EpsRel = d.EpsRel
	}
	if s.EpsInfeasible <= 0 {
		s.EpsInfeasible = d.EpsInfeasible
	}
	if s.MaxIter <= 0 {
		s.MaxIter = d.MaxIter
	}
	if s.CheckEvery <= 0 {
		s.CheckEvery = d.CheckEvery
	}
	return &ADMM{settings: s}
}

func (a *ADMM) Name() string { return "admm" }

func (a *ADMM) Settings() Settings { return a.settings }

// workspace holds the iterates and scratch vectors of one solve.
type workspace struct {
	p             *Problem
	n, m          int
	x, z, y       *mat.VecDense
	yPrev         *mat.VecDense
	xt, zt, zr    *mat.VecDense
	rhs, scratchM *mat.VecDense
	kkt           mat.Cholesky
	rho           float64
}

func (a *ADMM) Solve(p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n, m := p.Dims()
	if m == 0 {
		return SolveUnconstrained(p)
	}

	s := a.settings
	w := &workspace{
		p:        p,
		n:        n,
		m:        m,
		x:        mat.NewVecDense(n, nil),
		z:        mat.NewVecDense(m, nil),
		y:        mat.NewVecDense(m, nil),
		yPrev:    mat.NewVecDense(m, nil),
		xt:       mat.NewVecDense(n, nil),
		zt:       mat.NewVecDense(m, nil),
		zr:       mat.NewVecDense(m, nil),
		rhs:      mat.NewVecDense(n, nil),
		scratchM: mat.NewVecDense(m, nil),
		rho:      s.Rho,
	}
	if err := w.factorize(s.Sigma); err != nil {
		return nil, err
	}

	converged := false
	primalOK := false
	iter := 0
	for iter = 1; iter <= s.MaxIter; iter++ {
		if err := w.step(s); err != nil {
			return nil, err
		}
		if iter%s.CheckEvery != 0 && iter != s.MaxIter {
			continue
		}
		r := w.residuals(s)
		primalOK = r.prim <= r.epsPrim
		if primalOK && r.dual <= r.epsDual {
			converged = true
			break
		}
		if w.primalInfeasible(s.EpsInfeasible) {
			return nil, fmt.Errorf("%w: certificate found after %d iterations", dynamo.ErrInfeasible, iter)
		}
		if s.AdaptiveRho {
			if err := w.adaptRho(r, s.Sigma); err != nil {
				return nil, err
			}
		}
	}
	if iter > s.MaxIter {
		iter = s.MaxIter
	}

	res := &Result{
		X:          w.x,
		Y:          w.y,
		Status:     StatusSolved,
		Iterations: iter,
	}
	if s.Polish {
		if x, y, ok := polish(p, w.z, w.y); ok {
			res.X, res.Y = x, y
			res.Polished = true
			converged = true
		}
	}
	if !converged {
		if !primalOK {
			return nil, fmt.Errorf("%w: no feasible point after %d iterations", dynamo.ErrInfeasible, iter)
		}
		res.Status = StatusInaccurate
	}
	for i := 0; i < n; i++ {
		if v := res.X.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, dynamo.ErrNotConvex
		}
	}
	res.Objective = p.Objective(res.X)
	return res, nil
}

// factorize builds and factors P + σI + ρGᵀG for the current ρ.
func (w *workspace) factorize(sigma float64) error {
	k := mat.NewSymDense(w.n, nil)
	k.CopySym(w.p.P)
	k.SymRankK(k, w.rho, w.p.G.T())
	for i := 0; i < w.n; i++ {
		k.SetSym(i, i, k.At(i, i)+sigma)
	}
	if ok := w.kkt.Factorize(k); !ok {
		return dynamo.ErrNotConvex
	}
	return nil
}

func (w *workspace) step(s Settings) error {
	p := w.p
	w.yPrev.CopyVec(w.y)

	// rhs = σx − q + Gᵀ(ρz − y)
	w.scratchM.ScaleVec(w.rho, w.z)
	w.scratchM.SubVec(w.scratchM, w.y)
	w.rhs.MulVec(p.G.T(), w.scratchM)
	w.rhs.AddScaledVec(w.rhs, s.Sigma, w.x)
	w.rhs.SubVec(w.rhs, p.Q)
	if err := w.kkt.SolveVecTo(w.xt, w.rhs); err != nil {
		return fmt.Errorf("qp: admm linear solve: %w", err)
	}
	w.zt.MulVec(p.G, w.xt)

	w.x.ScaleVec(1-s.Alpha, w.x)
	w.x.AddScaledVec(w.x, s.Alpha, w.xt)

	w.zr.ScaleVec(1-s.Alpha, w.z)
	w.zr.AddScaledVec(w.zr, s.Alpha, w.zt)
	for i := 0; i < w.m; i++ {
		zr := w.zr.AtVec(i)
		yi := w.y.AtVec(i)
		zi := math.Min(zr+yi/w.rho, p.H.AtVec(i))
		w.y.SetVec(i, yi+w.rho*(zr-zi))
		w.z.SetVec(i, zi)
	}
	return nil
}

type residuals struct {
	prim, dual       float64
	epsPrim, epsDual float64
	primScale        float64
	dualScale        float64
}

func (w *workspace) residuals(s Settings) residuals {
	p := w.p
	var gx, px, gty, rp, rd mat.VecDense
	gx.MulVec(p.G, w.x)
	px.MulVec(p.P, w.x)
	gty.MulVec(p.G.T(), w.y)

	rp.SubVec(&gx, w.z)
	prim := infNorm(&rp)

	rd.AddVec(&px, p.Q)
	rd.AddVec(&rd, &gty)
	dual := infNorm(&rd)

	primScale := math.Max(infNorm(&gx), infNorm(w.z))
	dualScale := math.Max(infNorm(&px), math.Max(infNorm(&gty), infNorm(p.Q)))
	return residuals{
		prim:      prim,
		dual:      dual,
		epsPrim:   s.EpsAbs + s.EpsRel*primScale,
		epsDual:   s.EpsAbs + s.EpsRel*dualScale,
		primScale: primScale,
		dualScale: dualScale,
	}
}

// primalInfeasible checks whether δy = y − y_prev certifies Gx ≤ h empty:
// Gᵀδy ≈ 0, δy ≥ 0 and hᵀδy < 0.
func (w *workspace) primalInfeasible(eps float64) bool {
	var dy mat.VecDense
	dy.SubVec(w.y, w.yPrev)
	norm := infNorm(&dy)
	if norm < 1e-12 {
		return false
	}
	support := 0.0
	for i := 0; i < w.m; i++ {
		d := dy.AtVec(i)
		if d < -eps*norm {
			return false
		}
		support += w.p.H.AtVec(i) * math.Max(d, 0)
	}
	if support > -eps*norm {
		return false
	}
	var gtdy mat.VecDense
	gtdy.MulVec(w.p.G.T(), &dy)
	return infNorm(&gtdy) <= eps*norm
}

func (w *workspace) adaptRho(r residuals, sigma float64) error {
	const tiny = 1e-30
	prim := r.prim / math.Max(r.primScale, tiny)
	dual := r.dual / math.Max(r.dualScale, tiny)
	if prim < tiny || dual < tiny {
		return nil
	}
	rho := w.rho * math.Sqrt(prim/dual)
	rho = math.Min(math.Max(rho, rhoMin), rhoMax)
	if rho > w.rho*rhoAdaptFactor || rho < w.rho/rhoAdaptFactor {
		w.rho = rho
		return w.factorize(sigma)
	}
	return nil
}

// polish guesses the active set from the ADMM iterate and solves the
// equality-constrained KKT system exactly. The polished point is kept only
// if it is primal and dual feasible.
func polish(p *Problem, z, y *mat.VecDense) (*mat.VecDense, *mat.VecDense, bool) {
	n, m := p.Dims()
	active := make([]int, 0, m)
	for i := 0; i < m; i++ {
		if p.H.AtVec(i)-z.AtVec(i) < y.AtVec(i) {
			active = append(active, i)
		}
	}
	size := n + len(active)
	kkt := mat.NewDense(size, size, nil)
	kkt.Slice(0, n, 0, n).(*mat.Dense).Copy(p.P)
	rhs := mat.NewVecDense(size, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, -p.Q.AtVec(i))
	}
	for j, row := range active {
		for c := 0; c < n; c++ {
			g := p.G.At(row, c)
			kkt.Set(n+j, c, g)
			kkt.Set(c, n+j, g)
		}
		rhs.SetVec(n+j, p.H.AtVec(row))
	}

	var sol mat.VecDense
	if err := sol.SolveVec(kkt, rhs); err != nil {
		return nil, nil, false
	}
	x := mat.NewVecDense(n, nil)
	x.CopyVec(sol.SliceVec(0, n))

	yOut := mat.NewVecDense(m, nil)
	for j, row := range active {
		yj := sol.AtVec(n + j)
		if yj < -polishTol {
			return nil, nil, false
		}
		yOut.SetVec(row, math.Max(yj, 0))
	}
	var gx mat.VecDense
	gx.MulVec(p.G, x)
	for i := 0; i < m; i++ {
		h := p.H.AtVec(i)
		if gx.AtVec(i) > h+polishTol*math.Max(1, math.Abs(h)) {
			return nil, nil, false
		}
	}
	return x, yOut, true
}
