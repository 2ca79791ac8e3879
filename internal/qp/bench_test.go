package qp

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func benchProblem(n int) *Problem {
	g, h := box(n, -0.5, 0.5)
	q := mat.NewVecDense(n, nil)
	p := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		p.SetSym(i, i, 2)
		if i > 0 {
			p.SetSym(i, i-1, 0.5)
		}
		q.SetVec(i, float64(i%3)-1)
	}
	return &Problem{P: p, Q: q, G: g, H: h}
}

func BenchmarkADMM_Box10(b *testing.B) {
	solver := NewADMM(DefaultSettings())
	p := benchProblem(10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := solver.Solve(p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkADMM_Box60(b *testing.B) {
	solver := NewADMM(DefaultSettings())
	p := benchProblem(60)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := solver.Solve(p); err != nil {
			b.Fatal(err)
		}
	}
}
