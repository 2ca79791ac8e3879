package qp

import (
	"fmt"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// SolveUnconstrained minimizes ½ xᵀPx + qᵀx by solving Px = −q with a
// Cholesky factorization. P must be positive definite.
func SolveUnconstrained(p *Problem) (*Result, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(p.P); !ok {
		return nil, dynamo.ErrNotConvex
	}
	n := p.Q.Len()
	rhs := mat.NewVecDense(n, nil)
	rhs.ScaleVec(-1, p.Q)
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, rhs); err != nil {
		return nil, fmt.Errorf("qp: cholesky solve: %w", err)
	}
	return &Result{
		X:         x,
		Status:    StatusSolved,
		Objective: p.Objective(x),
	}, nil
}
