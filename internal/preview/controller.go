package preview

import (
	"fmt"
	"sort"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Controller builds and solves one preview QP. ComputeDynamics must run
// before ComputeControl; calling ComputeControl again after the boundary
// conditions change requires a new controller.
type Controller interface {
	ComputeDynamics()
	ComputeControl() (*Plan, error)
}

const (
	KindCondensed = "condensed"
	KindWeighted  = "weighted"
)

var kinds = map[string]func(System, ...Option) (Controller, error){
	KindCondensed: func(s System, opts ...Option) (Controller, error) { return NewCondensed(s, opts...) },
	KindWeighted:  func(s System, opts ...Option) (Controller, error) { return NewWeighted(s, opts...) },
}

// New returns the controller registered under kind ("" selects condensed).
func New(kind string, sys System, opts ...Option) (Controller, error) {
	if kind == "" {
		kind = KindCondensed
	}
	factory, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown preview controller: %s (available: %v)", kind, Kinds())
	}
	return factory(sys, opts...)
}

func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Condensed is the self-contained preview controller. It weights the
// terminal error and the controls with scalars and supports control and
// state inequalities together.
type Condensed struct {
	h *horizon
}

func NewCondensed(sys System, opts ...Option) (*Condensed, error) {
	h, err := newHorizon(sys, opts)
	if err != nil {
		return nil, err
	}
	return &Condensed{h: h}, nil
}

func (c *Condensed) ComputeDynamics() { c.h.computeDynamics() }

func (c *Condensed) ComputeControl() (*Plan, error) {
	return c.h.solve(KindCondensed, true,
		filled(c.h.xDim, c.h.sys.Wx),
		filled(c.h.uDim, c.h.sys.Wu),
	)
}

// Phi returns Φ_N, or nil before ComputeDynamics.
func (c *Condensed) Phi() *mat.Dense { return c.h.phi }

// Psi returns Ψ_N, or nil before ComputeDynamics.
func (c *Condensed) Psi() *mat.Dense { return c.h.psi }

// StateConstraints returns the stacked E·p_k ≤ f rows expressed over U,
// one block of rows per step starting at k = 0.
func (c *Condensed) StateConstraints() (*mat.Dense, []float64) {
	return c.h.stateC, c.h.stateD
}

// Plan returns the last computed plan.
func (c *Condensed) Plan() *Plan { return c.h.plan }

// Weighted mirrors the contract of the native preview controller: one
// weight per state and control component, control inequalities only.
type Weighted struct {
	h  *horizon
	wx []float64
	wu []float64
}

func NewWeighted(sys System, opts ...Option) (*Weighted, error) {
	if sys.E != nil {
		return nil, dynamo.Boundsf("preview: weighted controller does not support state constraints")
	}
	h, err := newHorizon(sys, opts)
	if err != nil {
		return nil, err
	}
	w := &Weighted{h: h, wx: h.sys.WxDiag, wu: h.sys.WuDiag}
	if w.wx == nil {
		w.wx = filled(h.xDim, h.sys.Wx)
	}
	if w.wu == nil {
		w.wu = filled(h.uDim, h.sys.Wu)
	}
	return w, nil
}

func (w *Weighted) ComputeDynamics() { w.h.computeDynamics() }

func (w *Weighted) ComputeControl() (*Plan, error) {
	return w.h.solve(KindWeighted, false, w.wx, w.wu)
}

func (w *Weighted) Plan() *Plan { return w.h.plan }
