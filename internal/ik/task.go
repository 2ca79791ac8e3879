package ik

import (
	"gonum.org/v1/gonum/mat"
)

// Task is one objective of the velocity solver. Jacobian has one column per
// DOF of the full configuration; the solver keeps only the active ones.
// Residual(dt) is the output-space displacement the task wants covered
// during the next dt.
type Task interface {
	Name() string
	Type() string
	Gain() (float64, bool)
	Weight() (float64, bool)
	SetGain(g float64)
	SetWeight(w float64)
	Jacobian() *mat.Dense
	Residual(dt float64) *mat.VecDense
	Cost(dt float64) float64
}

// Base carries the name, type, gain and weight shared by every task.
// Embed it and implement Jacobian and Residual.
type Base struct {
	name      string
	typ       string
	gain      float64
	weight    float64
	hasGain   bool
	hasWeight bool
}

func NewBase(name, typ string) Base {
	return Base{name: name, typ: typ}
}

func (b *Base) Name() string { return b.name }
func (b *Base) Type() string { return b.typ }

func (b *Base) Gain() (float64, bool)   { return b.gain, b.hasGain }
func (b *Base) Weight() (float64, bool) { return b.weight, b.hasWeight }

func (b *Base) SetGain(g float64) {
	b.gain = g
	b.hasGain = true
}

func (b *Base) SetWeight(w float64) {
	b.weight = w
	b.hasWeight = true
}

// scale multiplies err in place by the gain (1 when unset).
func (b *Base) scale(err *mat.VecDense) *mat.VecDense {
	if b.hasGain {
		err.ScaleVec(b.gain, err)
	}
	return err
}

// cost returns weight·‖r‖². An unset weight counts as 1.
func (b *Base) cost(r *mat.VecDense) float64 {
	w := 1.0
	if b.hasWeight {
		w = b.weight
	}
	return w * mat.Dot(r, r)
}

// FuncTask adapts closures to the Task interface. ErrorFn returns the raw
// task error; the gain is applied by Residual.
type FuncTask struct {
	Base
	JacobianFn func() *mat.Dense
	ErrorFn    func() *mat.VecDense
}

func NewFuncTask(name string, jac func() *mat.Dense, errFn func() *mat.VecDense) *FuncTask {
	return &FuncTask{Base: NewBase(name, TypeFunc), JacobianFn: jac, ErrorFn: errFn}
}

func (t *FuncTask) Jacobian() *mat.Dense { return t.JacobianFn() }

func (t *FuncTask) Residual(float64) *mat.VecDense {
	e := t.ErrorFn()
	r := mat.NewVecDense(e.Len(), nil)
	r.CopyVec(e)
	return t.scale(r)
}

func (t *FuncTask) Cost(dt float64) float64 { return t.cost(t.Residual(dt)) }
