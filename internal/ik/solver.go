package ik

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/robot"
	"github.com/san-kum/qpctl/internal/telemetry"
	"gonum.org/v1/gonum/mat"
)

// Config holds the solver parameters. Default gains and weights are keyed
// by task type and fill in tasks registered without their own.
type Config struct {
	DoflimGain     float64            `yaml:"doflim_gain"`
	DefaultGains   map[string]float64 `yaml:"default_gains"`
	DefaultWeights map[string]float64 `yaml:"default_weights"`
}

func DefaultConfig() Config {
	return Config{
		DoflimGain: 0.5,
		DefaultGains: map[string]float64{
			TypePosture:  0.85,
			TypeDOF:      0.85,
			TypePosition: 0.85,
		},
		DefaultWeights: map[string]float64{
			TypePosture:  1e-3,
			TypeDOF:      1e-2,
			TypePosition: 1.0,
		},
	}
}

func (c Config) Validate() error {
	if !(c.DoflimGain > 0 && c.DoflimGain <= 1) {
		return dynamo.Boundsf("ik: doflim_gain %g not in (0, 1]", c.DoflimGain)
	}
	for typ, g := range c.DefaultGains {
		if !(g > 0 && g <= 1) {
			return dynamo.Boundsf("ik: default gain %g for %q not in (0, 1]", g, typ)
		}
	}
	for typ, w := range c.DefaultWeights {
		if !(w >= 0) {
			return dynamo.Boundsf("ik: default weight %g for %q is negative", w, typ)
		}
	}
	return nil
}

type Option func(*VelocitySolver)

func WithLogger(l *slog.Logger) Option {
	return func(s *VelocitySolver) { s.logger = l }
}

func WithBackend(b qp.Solver) Option {
	return func(s *VelocitySolver) { s.backend = b }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *VelocitySolver) { s.metrics = m }
}

// VelocitySolver owns the task registry and turns it into a joint velocity
// every tick.
type VelocitySolver struct {
	model   robot.Model
	cfg     Config
	backend qp.Solver
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu    sync.Mutex
	tasks map[string]Task
}

func NewVelocitySolver(model robot.Model, cfg Config, opts ...Option) (*VelocitySolver, error) {
	if model == nil {
		return nil, errors.New("ik: robot model is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &VelocitySolver{
		model: model,
		cfg:   cfg,
		tasks: make(map[string]Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = qp.NewADMM(qp.DefaultSettings())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// AddTask registers a task, filling an unset gain or weight from the
// per-type defaults. On error neither the registry nor the task change.
func (s *VelocitySolver) AddTask(task Task) error {
	name := task.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; ok {
		return &TaskError{Kind: ErrDuplicateTask, Task: name}
	}
	if err := s.admit(task); err != nil {
		return err
	}
	s.tasks[name] = task
	s.metrics.TasksChanged(1)
	return nil
}

// ReplaceTask swaps a registered task for one of the same name in a single
// critical section, so no solve ever sees the registry without it. On error
// the registry keeps the old task.
func (s *VelocitySolver) ReplaceTask(task Task) error {
	name := task.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; !ok {
		return &TaskError{Kind: ErrUnknownTask, Task: name}
	}
	if err := s.admit(task); err != nil {
		return err
	}
	s.tasks[name] = task
	return nil
}

// admit validates a task and fills its defaults. Callers hold s.mu.
func (s *VelocitySolver) admit(task Task) error {
	name := task.Name()

	gain, hasGain := task.Gain()
	fillGain := false
	if !hasGain {
		gain, hasGain = s.cfg.DefaultGains[task.Type()]
		fillGain = hasGain
	}
	if hasGain && !(gain > 0 && gain <= 1) {
		return &TaskError{Kind: ErrInvalidGain, Task: name, Msg: fmt.Sprintf("gain %g", gain)}
	}

	weight, hasWeight := task.Weight()
	fillWeight := false
	if !hasWeight {
		weight, hasWeight = s.cfg.DefaultWeights[task.Type()]
		fillWeight = hasWeight
	}
	if !hasWeight {
		return &TaskError{Kind: ErrMissingWeight, Task: name, Msg: fmt.Sprintf("type %q", task.Type())}
	}
	if !(weight >= 0) || math.IsInf(weight, 1) {
		return &TaskError{Kind: ErrInvalidWeight, Task: name, Msg: fmt.Sprintf("weight %g", weight)}
	}

	if fillGain {
		task.SetGain(gain)
	}
	if fillWeight {
		task.SetWeight(weight)
	}
	s.logger.Debug("task admitted", "task", name, "type", task.Type(), "gain", gain, "weight", weight)
	return nil
}

// RemoveTask unregisters a task. Unknown names are logged and ignored.
func (s *VelocitySolver) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; !ok {
		s.logger.Warn("trying to remove unknown task", "task", name)
		return
	}
	delete(s.tasks, name)
	s.metrics.TasksChanged(-1)
	s.logger.Debug("task removed", "task", name)
}

// Tasks returns the registered task names in sorted order.
func (s *VelocitySolver) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNames()
}

func (s *VelocitySolver) Task(name string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	return t, ok
}

func (s *VelocitySolver) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// ComputeCost sums the costs of all registered tasks.
func (s *VelocitySolver) ComputeCost(dt float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, name := range s.sortedNames() {
		total += s.tasks[name].Cost(dt)
	}
	return total
}

func (s *VelocitySolver) sortedNames() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeVelocity solves for the active-DOF joint velocity qd minimizing
//
//	Σ weight·‖J·qd − r/dt‖²
//
// over all tasks, subject to qd staying within the velocity limits and a
// fraction doflim_gain of the distance to the position limits per dt.
func (s *VelocitySolver) ComputeVelocity(dt float64) (*mat.VecDense, error) {
	if !(dt > 0) {
		return nil, dynamo.Boundsf("ik: dt %g must be positive", dt)
	}
	start := time.Now()

	active := s.model.ActiveDOFs()
	state := s.model.JointState()
	n := len(active)
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if state.Len() != n {
		return nil, dynamo.Dimensionf("ik: joint state has %d DOFs, model has %d active", state.Len(), n)
	}

	cost, lin, err := s.assemble(active, dt)
	if err != nil {
		return nil, err
	}
	g, h := s.dofLimits(state, dt)
	problem := &qp.Problem{P: cost, Q: lin, G: g, H: h}

	solveStart := time.Now()
	res, err := s.backend.Solve(problem)
	solveTime := time.Since(solveStart)
	s.metrics.RecordSolve("ik", time.Since(start), solveTime, err)
	if err != nil {
		if !errors.Is(err, dynamo.ErrInfeasible) {
			err = fmt.Errorf("%w: %w", dynamo.ErrInfeasible, err)
		}
		return nil, &dynamo.SolveError{Op: "ik: compute velocity", Backend: s.backend.Name(), Wrapped: err}
	}

	qd := mat.NewVecDense(n, nil)
	qd.CopyVec(res.X)
	return qd, nil
}

// assemble builds P = Σ w·JᵀJ and q = −Σ w·Jᵀr/dt from a consistent
// snapshot of the registry.
func (s *VelocitySolver) assemble(active []int, dt float64) (*mat.SymDense, *mat.VecDense, error) {
	n := len(active)
	cost := mat.NewSymDense(n, nil)
	lin := mat.NewVecDense(n, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	var jtr mat.VecDense
	for _, name := range s.sortedNames() {
		task := s.tasks[name]
		jac := task.Jacobian()
		r := task.Residual(dt)
		rows, cols := jac.Dims()
		if r.Len() != rows {
			return nil, nil, dynamo.Dimensionf("ik: task %q has %d Jacobian rows but residual of length %d", name, rows, r.Len())
		}
		if !finite(jac) || !finite(r) {
			return nil, nil, fmt.Errorf("ik: task %q: %w", name, dynamo.ErrInvalidState)
		}
		j := mat.NewDense(rows, n, nil)
		for c, dof := range active {
			if dof < 0 || dof >= cols {
				return nil, nil, dynamo.Dimensionf("ik: task %q Jacobian has %d columns, active DOF %d out of range", name, cols, dof)
			}
			for row := 0; row < rows; row++ {
				j.Set(row, c, jac.At(row, dof))
			}
		}
		w, _ := task.Weight()
		cost.SymRankK(cost, w, j.T())
		jtr.MulVec(j.T(), r)
		lin.AddScaledVec(lin, -w/dt, &jtr)
	}
	return cost, lin, nil
}

func finite(m mat.Matrix) bool {
	rows, cols := m.Dims()
	row := make(dynamo.State, cols)
	for i := 0; i < rows; i++ {
		for j := range row {
			row[j] = m.At(i, j)
		}
		if !row.IsValid() {
			return false
		}
	}
	return true
}

// dofLimits returns G = [I; −I] and h = [qd_max'; −qd_min'].
func (s *VelocitySolver) dofLimits(st robot.JointState, dt float64) (*mat.Dense, *mat.VecDense) {
	n := st.Len()
	lo, hi := VelocityBounds(st, s.cfg.DoflimGain, dt)
	neg := mat.NewDense(n, n, nil)
	neg.Scale(-1, dynamo.Eye(n))
	negLo := dynamo.VecOf(lo)
	negLo.ScaleVec(-1, negLo)
	return dynamo.VStack(dynamo.Eye(n), neg), dynamo.HStackVec(dynamo.VecOf(hi), negLo)
}

// VelocityBounds returns the velocity box actually enforced for a tick:
// the velocity limits tightened by gain·(position margin)/dt.
func VelocityBounds(st robot.JointState, gain, dt float64) (lo, hi []float64) {
	n := st.Len()
	lo = make([]float64, n)
	hi = make([]float64, n)
	for i := 0; i < n; i++ {
		hi[i] = math.Min(st.QdMax[i], gain*(st.QMax[i]-st.Q[i])/dt)
		lo[i] = math.Max(st.QdMin[i], gain*(st.QMin[i]-st.Q[i])/dt)
	}
	return lo, hi
}
