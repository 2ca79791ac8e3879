package robot

import (
	"math"
	"sync"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultLinkLength  = 1.0
	DefaultJointLimit  = math.Pi
	DefaultVelocityCap = 2.0
)

// PlanarArm is a serial chain of revolute joints moving in the plane, with
// its base at the origin. Joint i rotates link i relative to link i-1.
type PlanarArm struct {
	mu     sync.RWMutex
	links  []float64
	q      []float64
	qMin   []float64
	qMax   []float64
	qdMin  []float64
	qdMax  []float64
	active []int
}

func NewPlanarArm(links []float64) *PlanarArm {
	n := len(links)
	a := &PlanarArm{
		links:  append([]float64(nil), links...),
		q:      make([]float64, n),
		qMin:   make([]float64, n),
		qMax:   make([]float64, n),
		qdMin:  make([]float64, n),
		qdMax:  make([]float64, n),
		active: make([]int, n),
	}
	for i := 0; i < n; i++ {
		a.qMin[i], a.qMax[i] = -DefaultJointLimit, DefaultJointLimit
		a.qdMin[i], a.qdMax[i] = -DefaultVelocityCap, DefaultVelocityCap
		a.active[i] = i
	}
	return a
}

func (a *PlanarArm) NbDOFs() int { return len(a.links) }

func (a *PlanarArm) Links() []float64 {
	return append([]float64(nil), a.links...)
}

// SetLimits replaces position and velocity bounds (full DOF ordering).
func (a *PlanarArm) SetLimits(qMin, qMax, qdMin, qdMax []float64) error {
	n := len(a.links)
	if len(qMin) != n || len(qMax) != n || len(qdMin) != n || len(qdMax) != n {
		return dynamo.Dimensionf("planar arm: limits must have %d entries", n)
	}
	for i := 0; i < n; i++ {
		if qMin[i] > qMax[i] || qdMin[i] > qdMax[i] {
			return dynamo.Boundsf("planar arm: inverted limits at joint %d", i)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	copy(a.qMin, qMin)
	copy(a.qMax, qMax)
	copy(a.qdMin, qdMin)
	copy(a.qdMax, qdMax)
	return nil
}

// SetQ sets the full configuration. It must lie within the position limits.
func (a *PlanarArm) SetQ(q []float64) error {
	if len(q) != len(a.links) {
		return dynamo.Dimensionf("planar arm: q has %d entries, want %d", len(q), len(a.links))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, v := range q {
		if v < a.qMin[i] || v > a.qMax[i] {
			return dynamo.Boundsf("planar arm: q[%d]=%.4f outside [%.4f, %.4f]", i, v, a.qMin[i], a.qMax[i])
		}
	}
	copy(a.q, q)
	return nil
}

// SetActiveDOFs restricts the solver to a subset of joints.
func (a *PlanarArm) SetActiveDOFs(idx []int) error {
	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(a.links) || seen[i] {
			return dynamo.Boundsf("planar arm: invalid active dof %d", i)
		}
		seen[i] = true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = append([]int(nil), idx...)
	return nil
}

func (a *PlanarArm) Q() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]float64(nil), a.q...)
}

func (a *PlanarArm) ActiveDOFs() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]int(nil), a.active...)
}

func (a *PlanarArm) JointState() JointState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := len(a.active)
	s := JointState{
		Q:     make([]float64, n),
		QMin:  make([]float64, n),
		QMax:  make([]float64, n),
		QdMin: make([]float64, n),
		QdMax: make([]float64, n),
	}
	for i, dof := range a.active {
		s.Q[i] = a.q[dof]
		s.QMin[i] = a.qMin[dof]
		s.QMax[i] = a.qMax[dof]
		s.QdMin[i] = a.qdMin[dof]
		s.QdMax[i] = a.qdMax[dof]
	}
	return s
}

// LinkPosition returns the tip of link (0-based) in the base frame.
func (a *PlanarArm) LinkPosition(link int) [2]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ForwardKinematics(a.links, a.q, link)
}

// ForwardKinematics returns the tip of link for configuration q of a
// planar chain with the given link lengths.
func ForwardKinematics(links, q []float64, link int) [2]float64 {
	var p [2]float64
	phi := 0.0
	for i := 0; i <= link && i < len(links) && i < len(q); i++ {
		phi += q[i]
		p[0] += links[i] * math.Cos(phi)
		p[1] += links[i] * math.Sin(phi)
	}
	return p
}

// LinkJacobian returns the 2×n Jacobian of LinkPosition(link) with respect
// to the full configuration. Columns of joints past link are zero.
func (a *PlanarArm) LinkJacobian(link int) *mat.Dense {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := len(a.links)
	if link >= n {
		link = n - 1
	}
	phis := make([]float64, link+1)
	phi := 0.0
	for i := 0; i <= link; i++ {
		phi += a.q[i]
		phis[i] = phi
	}
	j := mat.NewDense(2, n, nil)
	for col := 0; col <= link; col++ {
		dx, dy := 0.0, 0.0
		for i := col; i <= link; i++ {
			dx -= a.links[i] * math.Sin(phis[i])
			dy += a.links[i] * math.Cos(phis[i])
		}
		j.Set(0, col, dx)
		j.Set(1, col, dy)
	}
	return j
}

// Integrate applies an active-DOF velocity for dt seconds. Positions are
// clamped to their limits.
func (a *PlanarArm) Integrate(qd mat.Vector, dt float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if qd.Len() != len(a.active) {
		return dynamo.Dimensionf("planar arm: velocity has %d entries, want %d", qd.Len(), len(a.active))
	}
	for i, dof := range a.active {
		v := a.q[dof] + qd.AtVec(i)*dt
		a.q[dof] = math.Min(math.Max(v, a.qMin[dof]), a.qMax[dof])
	}
	return nil
}
