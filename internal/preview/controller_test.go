package preview

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/san-kum/qpctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func assertClose(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s[%d] = %g, want %g", name, i, got[i], want[i])
		}
	}
}

func TestCondensed_ClosedFormBlend(t *testing.T) {
	tests := []struct {
		name   string
		wx, wu float64
		goal   []float64
	}{
		{"balanced", 1, 1, []float64{1, -2}},
		{"state heavy", 3, 1, []float64{1, -2}},
		{"control heavy", 0.5, 4, []float64{-0.3, 0.7}},
		{"defaults", 0, 0, []float64{2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := System{
				A: dynamo.Eye(2), B: dynamo.Eye(2),
				XInit: []float64{0, 0}, XGoal: tt.goal,
				NbSteps: 1, Wx: tt.wx, Wu: tt.wu, Timestep: 0.1,
			}
			c, err := NewCondensed(sys, quiet)
			if err != nil {
				t.Fatalf("NewCondensed: %v", err)
			}
			c.ComputeDynamics()
			plan, err := c.ComputeControl()
			if err != nil {
				t.Fatalf("ComputeControl: %v", err)
			}

			wx, wu := tt.wx, tt.wu
			if wx == 0 && wu == 0 {
				wx, wu = DefaultWx, DefaultWu
			}
			ratio := wx / (wx + wu)
			want := []float64{ratio * tt.goal[0], ratio * tt.goal[1]}
			assertClose(t, "U", plan.U, want, 1e-9)
			if plan.UDim != 2 || plan.Timestep != 0.1 || plan.NbSteps() != 1 {
				t.Errorf("unexpected plan shape: %+v", plan)
			}
			if plan.BuildTime < plan.SolveTime {
				t.Errorf("build time %v shorter than solve time %v", plan.BuildTime, plan.SolveTime)
			}
			if c.Plan() != plan {
				t.Error("Plan() does not return the last plan")
			}
		})
	}
}

func TestCondensed_DynamicsDimensions(t *testing.T) {
	const (
		T = 0.1
		N = 5
	)
	A, B := DoubleIntegrator(2, T)
	c, err := NewCondensed(System{
		A: A, B: B,
		XInit: make([]float64, 4), XGoal: make([]float64, 4),
		NbSteps: N, Timestep: T,
	}, quiet)
	if err != nil {
		t.Fatalf("NewCondensed: %v", err)
	}
	if c.Phi() != nil || c.Psi() != nil {
		t.Fatal("Φ/Ψ available before ComputeDynamics")
	}
	c.ComputeDynamics()

	if r, k := c.Phi().Dims(); r != 4 || k != 4 {
		t.Errorf("Φ is %dx%d, want 4x4", r, k)
	}
	if r, k := c.Psi().Dims(); r != 4 || k != 2*N {
		t.Errorf("Ψ is %dx%d, want 4x%d", r, k, 2*N)
	}

	// Φ_N = A^N, i.e. position picks up N·T of velocity.
	if got := c.Phi().At(0, 2); math.Abs(got-N*T) > 1e-12 {
		t.Errorf("Φ[0,2] = %g, want %g", got, N*T)
	}
	// Ψ_N block k = A^(N−1−k)·B; the last block is B itself.
	last := c.Psi().Slice(0, 4, 2*(N-1), 2*N)
	if !mat.EqualApprox(last, B, 1e-12) {
		t.Errorf("last Ψ block = %v, want B", mat.Formatted(last))
	}
	// First block: p gets T²/2 + (N−1)·T·T.
	want := T*T/2 + (N-1)*T*T
	if got := c.Psi().At(0, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("Ψ[0,0] = %g, want %g", got, want)
	}
}

func TestCondensed_InitialStepConstraint(t *testing.T) {
	const T = 0.1
	A, B := DoubleIntegrator(2, T)
	E := dynamo.Eye(2)
	c, err := NewCondensed(System{
		A: A, B: B,
		XInit: []float64{1, 2, 0, 0}, XGoal: make([]float64, 4),
		NbSteps: 3, Timestep: T,
		E: E, F: []float64{10, 10},
	}, quiet)
	if err != nil {
		t.Fatalf("NewCondensed: %v", err)
	}
	c.ComputeDynamics()
	C, d := c.StateConstraints()
	if r, k := C.Dims(); r != 6 || k != 6 {
		t.Fatalf("state constraints are %dx%d, want 6x6", r, k)
	}

	// k = 0 uses Φ_0 = I and Ψ_0 = 0.
	for i := 0; i < 2; i++ {
		for j := 0; j < 6; j++ {
			if C.At(i, j) != 0 {
				t.Errorf("C[%d,%d] = %g, want 0", i, j, C.At(i, j))
			}
		}
	}
	assertClose(t, "d[k=0]", d[:2], []float64{9, 8}, 1e-12)

	// k = 1: p_1 = p_0 + T²/2·u_0.
	if got := C.At(2, 0); math.Abs(got-T*T/2) > 1e-12 {
		t.Errorf("C[2,0] = %g, want %g", got, T*T/2)
	}
	if got := C.At(2, 2); got != 0 {
		t.Errorf("C[2,2] = %g, want 0 (u_1 cannot affect p_1)", got)
	}
}

func TestCondensed_NotBuilt(t *testing.T) {
	c, err := NewCondensed(System{
		A: dynamo.Eye(1), B: dynamo.Eye(1),
		XInit: []float64{0}, XGoal: []float64{1},
		NbSteps: 1, Timestep: 1,
	}, quiet)
	if err != nil {
		t.Fatalf("NewCondensed: %v", err)
	}
	if _, err := c.ComputeControl(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("expected ErrNotBuilt, got %v", err)
	}
}

// predict rolls the plan through the dynamics and returns x_0..x_N.
func predict(A, B *mat.Dense, x0 []float64, plan *Plan) [][]float64 {
	xs := [][]float64{append([]float64(nil), x0...)}
	x := dynamo.VecOf(x0)
	for k := 0; k < plan.NbSteps(); k++ {
		var ax, bu mat.VecDense
		ax.MulVec(A, x)
		bu.MulVec(B, dynamo.VecOf(plan.Control(k)))
		x.AddVec(&ax, &bu)
		xs = append(xs, dynamo.Slice(x))
	}
	return xs
}

func TestCondensed_CombinedConstraints(t *testing.T) {
	const (
		T    = 0.1
		N    = 10
		umax = 5.0
		pmax = 0.5
	)
	A, B := DoubleIntegrator(1, T)
	G, h := BoxConstraint(1, -umax, umax)
	sys := System{
		A: A, B: B,
		XInit: []float64{0, 0}, XGoal: []float64{1, 0},
		NbSteps: N, Timestep: T,
		G: G, H: h,
		E: dynamo.Eye(1), F: []float64{pmax},
	}
	c, err := NewCondensed(sys, quiet)
	if err != nil {
		t.Fatalf("NewCondensed: %v", err)
	}
	c.ComputeDynamics()
	plan, err := c.ComputeControl()
	if err != nil {
		t.Fatalf("ComputeControl: %v", err)
	}

	const tol = 1e-4
	for k, u := range plan.U {
		if math.Abs(u) > umax+tol {
			t.Errorf("u[%d] = %g exceeds %g", k, u, umax)
		}
	}
	xs := predict(A, B, sys.XInit, plan)
	for k := 0; k < N; k++ {
		if p := xs[k][0]; p > pmax+tol {
			t.Errorf("p[%d] = %g exceeds %g", k, p, pmax)
		}
	}
	if xs[N][0] < 0.3 {
		t.Errorf("p[%d] = %g, expected progress towards the goal", N, xs[N][0])
	}
}

func TestCondensed_Infeasible(t *testing.T) {
	t.Run("initial state violates bound", func(t *testing.T) {
		A, B := DoubleIntegrator(1, 0.1)
		c, err := NewCondensed(System{
			A: A, B: B,
			XInit: []float64{1, 0}, XGoal: []float64{0, 0},
			NbSteps: 4, Timestep: 0.1,
			E: dynamo.Eye(1), F: []float64{0.5},
		}, quiet)
		if err != nil {
			t.Fatalf("NewCondensed: %v", err)
		}
		c.ComputeDynamics()
		if _, err := c.ComputeControl(); !errors.Is(err, dynamo.ErrInfeasible) {
			t.Errorf("expected ErrInfeasible, got %v", err)
		}
	})

	t.Run("empty control set", func(t *testing.T) {
		c, err := NewCondensed(System{
			A: dynamo.Eye(1), B: dynamo.Eye(1),
			XInit: []float64{0}, XGoal: []float64{1},
			NbSteps: 2, Timestep: 0.1,
			G: mat.NewDense(2, 1, []float64{1, -1}), H: []float64{-1, -1},
		}, quiet)
		if err != nil {
			t.Fatalf("NewCondensed: %v", err)
		}
		c.ComputeDynamics()
		_, err = c.ComputeControl()
		if !errors.Is(err, dynamo.ErrInfeasible) {
			t.Errorf("expected ErrInfeasible, got %v", err)
		}
		var se *dynamo.SolveError
		if !errors.As(err, &se) {
			t.Errorf("expected *dynamo.SolveError, got %T", err)
		}
	})
}

func TestWeighted_MatchesCondensed(t *testing.T) {
	A, B := DoubleIntegrator(2, 0.1)
	G, h := BoxConstraint(2, -3, 3)
	sys := System{
		A: A, B: B,
		XInit: []float64{0, 0, 0.2, -0.1}, XGoal: []float64{0.4, -0.2, 0, 0},
		NbSteps: 8, Timestep: 0.1,
		G: G, H: h, Wx: 100, Wu: 1,
	}

	var plans []*Plan
	for _, kind := range Kinds() {
		ctrl, err := New(kind, sys, quiet)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		ctrl.ComputeDynamics()
		plan, err := ctrl.ComputeControl()
		if err != nil {
			t.Fatalf("%s: ComputeControl: %v", kind, err)
		}
		plans = append(plans, plan)
	}
	assertClose(t, "U", plans[1].U, plans[0].U, 1e-4)
}

func TestWeighted_ComponentWeights(t *testing.T) {
	w, err := NewWeighted(System{
		A: dynamo.Eye(2), B: dynamo.Eye(2),
		XInit: []float64{0, 0}, XGoal: []float64{1, 1},
		NbSteps: 1, Timestep: 0.1,
		Wx: 1, Wu: 1,
		WxDiag: []float64{3, 1}, WuDiag: []float64{1, 1},
	}, quiet)
	if err != nil {
		t.Fatalf("NewWeighted: %v", err)
	}
	w.ComputeDynamics()
	plan, err := w.ComputeControl()
	if err != nil {
		t.Fatalf("ComputeControl: %v", err)
	}
	assertClose(t, "U", plan.U, []float64{0.75, 0.5}, 1e-9)
}

func TestWeighted_RejectsStateConstraints(t *testing.T) {
	_, err := NewWeighted(System{
		A: dynamo.Eye(2), B: dynamo.Eye(2),
		XInit: []float64{0, 0}, XGoal: []float64{1, 1},
		NbSteps: 1, Timestep: 0.1,
		E: dynamo.Eye(1), F: []float64{1},
	})
	if !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
}

func TestSystemValidate(t *testing.T) {
	base := func() System {
		return System{
			A: dynamo.Eye(2), B: dynamo.Eye(2),
			XInit: []float64{0, 0}, XGoal: []float64{1, 1},
			NbSteps: 2, Timestep: 0.1,
		}
	}
	tests := []struct {
		name   string
		mutate func(*System)
		want   error
	}{
		{"non-square A", func(s *System) { s.A = mat.NewDense(2, 3, nil) }, dynamo.ErrDimensionMismatch},
		{"B rows", func(s *System) { s.B = mat.NewDense(3, 2, nil) }, dynamo.ErrDimensionMismatch},
		{"x_init length", func(s *System) { s.XInit = []float64{0} }, dynamo.ErrDimensionMismatch},
		{"zero steps", func(s *System) { s.NbSteps = 0 }, dynamo.ErrParameterBounds},
		{"zero timestep", func(s *System) { s.Timestep = 0 }, dynamo.ErrParameterBounds},
		{"zero control weight", func(s *System) { s.Wx = 1 }, dynamo.ErrParameterBounds},
		{"G columns", func(s *System) { s.G = mat.NewDense(1, 3, nil); s.H = []float64{0} }, dynamo.ErrDimensionMismatch},
		{"h length", func(s *System) { s.G = mat.NewDense(1, 2, nil); s.H = []float64{0, 1} }, dynamo.ErrDimensionMismatch},
		{"E columns", func(s *System) { s.E = mat.NewDense(1, 2, nil); s.F = []float64{0} }, dynamo.ErrDimensionMismatch},
		{"f without E", func(s *System) { s.F = []float64{0} }, dynamo.ErrDimensionMismatch},
		{"wu vector length", func(s *System) { s.WuDiag = []float64{1} }, dynamo.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			_, err := NewCondensed(s)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := New("copra", base()); err == nil {
		t.Error("expected error for unknown controller kind")
	}
}
