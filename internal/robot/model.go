// Package robot defines the kinematic model consumed by the velocity solver
// and a planar serial arm implementing it.
package robot

import (
	"github.com/san-kum/qpctl/internal/dynamo"
)

// JointState is a snapshot of the active DOFs. All slices share the
// ordering of Model.ActiveDOFs.
type JointState struct {
	Q     []float64
	QMin  []float64
	QMax  []float64
	QdMin []float64
	QdMax []float64
}

// Len returns the number of active DOFs.
func (s JointState) Len() int { return len(s.Q) }

func (s JointState) Validate() error {
	n := len(s.Q)
	if len(s.QMin) != n || len(s.QMax) != n || len(s.QdMin) != n || len(s.QdMax) != n {
		return dynamo.Dimensionf("joint state: q has %d entries, bounds have %d/%d/%d/%d",
			n, len(s.QMin), len(s.QMax), len(s.QdMin), len(s.QdMax))
	}
	for i := 0; i < n; i++ {
		if s.QMin[i] > s.QMax[i] || s.QdMin[i] > s.QdMax[i] {
			return dynamo.Boundsf("joint state: inverted bounds at dof %d", i)
		}
	}
	return nil
}

// Model is the kinematic model contract. JointState must be cheap: it is
// read once per control tick.
type Model interface {
	// ActiveDOFs returns indices into the full configuration vector. Task
	// Jacobians are restricted to these columns.
	ActiveDOFs() []int
	JointState() JointState
}
