package metrics

import (
	"github.com/san-kum/qpctl/internal/dynamo"
)

// PeakControl tracks the largest command component seen.
type PeakControl struct {
	peak float64
}

func NewPeakControl() *PeakControl { return &PeakControl{} }

func (p *PeakControl) Name() string { return "peak_control" }

func (p *PeakControl) Observe(_ dynamo.State, u dynamo.Control, _ float64) {
	if m := u.MaxAbs(); m > p.peak {
		p.peak = m
	}
}

func (p *PeakControl) Value() float64 { return p.peak }

func (p *PeakControl) Reset() { p.peak = 0 }
