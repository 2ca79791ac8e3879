package ik

import (
	"gonum.org/v1/gonum/mat"
)

// Task types with configurable default gains and weights.
const (
	TypePosture  = "posture"
	TypeDOF      = "dof"
	TypePosition = "position"
	TypeFunc     = "func"
)

// Configuration exposes the full joint configuration of a robot.
type Configuration interface {
	Q() []float64
}

// LinkKinematics exposes planar link positions and Jacobians.
type LinkKinematics interface {
	Configuration
	LinkPosition(link int) [2]float64
	LinkJacobian(link int) *mat.Dense
}

// PostureTask drives the whole configuration towards a reference.
type PostureTask struct {
	Base
	robot  Configuration
	target []float64
}

func NewPostureTask(name string, robot Configuration, target []float64) *PostureTask {
	t := make([]float64, len(target))
	copy(t, target)
	return &PostureTask{Base: NewBase(name, TypePosture), robot: robot, target: t}
}

func (t *PostureTask) Jacobian() *mat.Dense {
	n := len(t.target)
	j := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		j.Set(i, i, 1)
	}
	return j
}

func (t *PostureTask) Residual(float64) *mat.VecDense {
	q := t.robot.Q()
	r := mat.NewVecDense(len(t.target), nil)
	for i, ref := range t.target {
		r.SetVec(i, ref-q[i])
	}
	return t.scale(r)
}

func (t *PostureTask) Cost(dt float64) float64 { return t.cost(t.Residual(dt)) }

// DOFTask drives a single joint towards a target angle.
type DOFTask struct {
	Base
	robot  Configuration
	dof    int
	target float64
}

func NewDOFTask(name string, robot Configuration, dof int, target float64) *DOFTask {
	return &DOFTask{Base: NewBase(name, TypeDOF), robot: robot, dof: dof, target: target}
}

func (t *DOFTask) Jacobian() *mat.Dense {
	j := mat.NewDense(1, len(t.robot.Q()), nil)
	j.Set(0, t.dof, 1)
	return j
}

func (t *DOFTask) Residual(float64) *mat.VecDense {
	r := mat.NewVecDense(1, []float64{t.target - t.robot.Q()[t.dof]})
	return t.scale(r)
}

func (t *DOFTask) Cost(dt float64) float64 { return t.cost(t.Residual(dt)) }

// PositionTask drives the tip of a link towards a point in the plane.
type PositionTask struct {
	Base
	robot  LinkKinematics
	link   int
	target [2]float64
}

func NewPositionTask(name string, robot LinkKinematics, link int, target [2]float64) *PositionTask {
	return &PositionTask{Base: NewBase(name, TypePosition), robot: robot, link: link, target: target}
}

// SetTarget moves the goal point. Callers must not race it with a tick.
func (t *PositionTask) SetTarget(target [2]float64) { t.target = target }

func (t *PositionTask) Target() [2]float64 { return t.target }

func (t *PositionTask) Jacobian() *mat.Dense { return t.robot.LinkJacobian(t.link) }

func (t *PositionTask) Residual(float64) *mat.VecDense {
	p := t.robot.LinkPosition(t.link)
	r := mat.NewVecDense(2, []float64{t.target[0] - p[0], t.target[1] - p[1]})
	return t.scale(r)
}

func (t *PositionTask) Cost(dt float64) float64 { return t.cost(t.Residual(dt)) }
