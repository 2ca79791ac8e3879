package metrics

import (
	"math"

	"github.com/san-kum/qpctl/internal/dynamo"
)

// GoalDistance reports the Euclidean distance between the leading entries
// of the last observed state and a goal.
type GoalDistance struct {
	name  string
	goal  []float64
	dist  float64
	valid bool
	point func(x dynamo.State) []float64
}

func NewGoalDistance(goal []float64) *GoalDistance {
	return &GoalDistance{name: "goal_distance", goal: append([]float64(nil), goal...)}
}

// NewPointDistance measures the distance from point(x) to goal, e.g. an
// end-effector position computed from joint angles.
func NewPointDistance(name string, goal []float64, point func(x dynamo.State) []float64) *GoalDistance {
	g := NewGoalDistance(goal)
	g.name = name
	g.point = point
	return g
}

func (g *GoalDistance) Name() string { return g.name }

func (g *GoalDistance) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	p := []float64(x)
	if g.point != nil {
		p = g.point(x)
	}
	if len(p) < len(g.goal) {
		return
	}
	g.dist = dynamo.State(p[:len(g.goal)]).Sub(g.goal).Norm()
	g.valid = true
}

func (g *GoalDistance) Value() float64 {
	if !g.valid {
		return math.NaN()
	}
	return g.dist
}

func (g *GoalDistance) Reset() {
	g.dist = 0
	g.valid = false
}
