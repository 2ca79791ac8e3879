package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// MaxAbs returns the infinity norm of the command.
func (u Control) MaxAbs() float64 {
	m := 0.0
	for _, v := range u {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(x State, u Control, t float64)

func (f ObserverFunc) OnStep(x State, u Control, t float64) { f(x, u, t) }

type Result struct {
	States   []State
	Controls []Control
	Times    []float64
	Metrics  map[string]float64
	Errors   []error
}
