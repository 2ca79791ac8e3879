package viz

import (
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/robot"
)

// Scene draws one state on a canvas.
type Scene interface {
	Name() string
	Draw(c *Canvas, x dynamo.State)
}

// ArmScene draws a planar arm from its joint angles, plus optional
// position targets.
type ArmScene struct {
	Links   []float64
	Targets [][2]float64
}

func (s ArmScene) Name() string { return "planar arm" }

func (s ArmScene) Draw(c *Canvas, x dynamo.State) {
	reach := 0.0
	for _, l := range s.Links {
		reach += l
	}
	reach *= 1.1
	c.SetWindow(-reach, reach, -reach, reach)

	c.Line(-reach, 0, reach, 0)
	for _, t := range s.Targets {
		c.Mark(t[0], t[1])
	}
	if len(x) < len(s.Links) {
		return
	}
	prev := [2]float64{0, 0}
	for i := range s.Links {
		p := robot.ForwardKinematics(s.Links, x, i)
		c.Line(prev[0], prev[1], p[0], p[1])
		c.Mark(p[0], p[1])
		prev = p
	}
}

// PointScene draws the position of a double integrator in the plane with
// its goal and position bounds. The state is [p; v].
type PointScene struct {
	Goal   []float64
	Lo, Hi []float64

	trail [][2]float64
}

func (s *PointScene) Name() string { return "preview" }

func (s *PointScene) Draw(c *Canvas, x dynamo.State) {
	xMin, xMax, yMin, yMax := -0.5, 1.5, -0.5, 1.5
	if len(s.Lo) >= 2 {
		xMin, yMin = s.Lo[0]-0.25, s.Lo[1]-0.25
	}
	if len(s.Hi) >= 2 {
		xMax, yMax = s.Hi[0]+0.25, s.Hi[1]+0.25
	}
	c.SetWindow(xMin, xMax, yMin, yMax)

	if len(s.Lo) >= 2 && len(s.Hi) >= 2 {
		lo, hi := s.Lo, s.Hi
		c.Line(lo[0], lo[1], hi[0], lo[1])
		c.Line(hi[0], lo[1], hi[0], hi[1])
		c.Line(hi[0], hi[1], lo[0], hi[1])
		c.Line(lo[0], hi[1], lo[0], lo[1])
	}
	if len(s.Goal) >= 2 {
		c.Mark(s.Goal[0], s.Goal[1])
	}

	var p [2]float64
	switch {
	case len(x) >= 4:
		p = [2]float64{x[0], x[1]}
	case len(x) == 2:
		p = [2]float64{x[0], 0}
	default:
		return
	}
	s.trail = append(s.trail, p)
	if len(s.trail) > 200 {
		s.trail = s.trail[1:]
	}
	for _, q := range s.trail {
		c.Plot(q[0], q[1])
	}
	c.Mark(p[0], p[1])
}
