package metrics

import (
	"github.com/san-kum/qpctl/internal/dynamo"
)

// BoundCompliance is the fraction of samples whose leading state entries
// stay within [lo, hi] up to tol.
type BoundCompliance struct {
	name       string
	lo, hi     []float64
	tol        float64
	violations int
	samples    int
}

func NewBoundCompliance(name string, lo, hi []float64, tol float64) *BoundCompliance {
	return &BoundCompliance{
		name: name,
		lo:   append([]float64(nil), lo...),
		hi:   append([]float64(nil), hi...),
		tol:  tol,
	}
}

func (b *BoundCompliance) Name() string {
	return b.name
}

func (b *BoundCompliance) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	b.samples++
	for i, v := range x {
		if i < len(b.lo) && v < b.lo[i]-b.tol {
			b.violations++
			return
		}
		if i < len(b.hi) && v > b.hi[i]+b.tol {
			b.violations++
			return
		}
	}
}

func (b *BoundCompliance) Value() float64 {
	if b.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(b.violations)/float64(b.samples)
}

func (b *BoundCompliance) Reset() {
	b.violations = 0
	b.samples = 0
}
