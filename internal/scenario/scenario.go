// Package scenario turns a config into runnable solvers: the arm and task
// registry of an IK run, the planner of a preview run, and the metrics
// reported for each.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/san-kum/qpctl/internal/config"
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/metrics"
	"github.com/san-kum/qpctl/internal/preview"
	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/robot"
	"github.com/san-kum/qpctl/internal/sim"
	"github.com/san-kum/qpctl/internal/telemetry"
	"gonum.org/v1/gonum/mat"
)

// BuildArm creates a planar arm from its config.
func BuildArm(rc config.RobotConfig) (*robot.PlanarArm, error) {
	arm := robot.NewPlanarArm(rc.Links)
	js := arm.JointState()
	pick := func(v, def []float64) []float64 {
		if len(v) == 0 {
			return def
		}
		return v
	}
	if err := arm.SetLimits(pick(rc.QMin, js.QMin), pick(rc.QMax, js.QMax), pick(rc.QdMin, js.QdMin), pick(rc.QdMax, js.QdMax)); err != nil {
		return nil, err
	}
	if len(rc.Q) > 0 {
		if err := arm.SetQ(rc.Q); err != nil {
			return nil, err
		}
	}
	if len(rc.Active) > 0 {
		if err := arm.SetActiveDOFs(rc.Active); err != nil {
			return nil, err
		}
	}
	return arm, nil
}

// IK is a velocity solver bound to an arm, with the task specs it was
// built from so a reloaded config can be applied incrementally.
type IK struct {
	Arm    *robot.PlanarArm
	Solver *ik.VelocitySolver

	registry *Registry
	logger   *slog.Logger

	mu    sync.Mutex
	specs map[string]config.TaskConfig
}

// NewIK builds the arm, the backend and the solver, then registers the
// configured tasks.
func NewIK(cfg *config.Config, logger *slog.Logger, tm *telemetry.Metrics) (*IK, error) {
	if logger == nil {
		logger = slog.Default()
	}
	arm, err := BuildArm(cfg.Robot)
	if err != nil {
		return nil, fmt.Errorf("build arm: %w", err)
	}
	backend, err := qp.New(cfg.Backend, cfg.QP)
	if err != nil {
		return nil, err
	}
	solver, err := ik.NewVelocitySolver(arm, cfg.Solver,
		ik.WithBackend(backend),
		ik.WithLogger(logger),
		ik.WithMetrics(tm),
	)
	if err != nil {
		return nil, err
	}
	s := &IK{
		Arm:      arm,
		Solver:   solver,
		registry: NewRegistry(),
		logger:   logger,
		specs:    make(map[string]config.TaskConfig),
	}
	if _, err := s.Sync(cfg.Tasks); err != nil {
		return nil, err
	}
	return s, nil
}

// Diff lists the task names touched by Sync.
type Diff struct {
	Added    []string
	Removed  []string
	Replaced []string
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Replaced) == 0
}

// Sync reconciles the solver registry with tasks: dropped tasks are
// removed, changed ones swapped in place and new ones added. It is safe to
// call while another goroutine ticks the solver, which never observes a
// changed task missing. A task that fails to build keeps its previous
// version. Failures are reported together and do not stop the others.
func (s *IK) Sync(tasks []config.TaskConfig) (Diff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var diff Diff
	wanted := make(map[string]bool, len(tasks))
	for _, tc := range tasks {
		wanted[tc.Name] = true
	}
	for name := range s.specs {
		if wanted[name] {
			continue
		}
		s.Solver.RemoveTask(name)
		delete(s.specs, name)
		diff.Removed = append(diff.Removed, name)
	}

	var errs []error
	for _, tc := range tasks {
		old, known := s.specs[tc.Name]
		if known && reflect.DeepEqual(tc, old) {
			continue
		}
		task, err := s.registry.BuildTask(tc, s.Arm)
		if err == nil {
			if known {
				err = s.Solver.ReplaceTask(task)
			} else {
				err = s.Solver.AddTask(task)
			}
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.specs[tc.Name] = tc
		if known {
			diff.Replaced = append(diff.Replaced, tc.Name)
		} else {
			diff.Added = append(diff.Added, tc.Name)
		}
	}
	sort.Strings(diff.Removed)
	if !diff.Empty() {
		s.logger.Info("task registry synced", "added", diff.Added, "removed", diff.Removed, "replaced", diff.Replaced)
	}
	return diff, errors.Join(errs...)
}

// Metrics returns the metrics reported for an IK run: control effort, peak
// joint velocity and the error of every position task.
func (s *IK) Metrics() []dynamo.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []dynamo.Metric{metrics.NewControlEffort(), metrics.NewPeakControl()}
	links := s.Arm.Links()
	for _, name := range s.Solver.Tasks() {
		tc, ok := s.specs[name]
		if !ok || tc.Type != ik.TypePosition {
			continue
		}
		link := tc.Link
		out = append(out, metrics.NewPointDistance(name+"_error", tc.Target, func(x dynamo.State) []float64 {
			p := robot.ForwardKinematics(links, x, link)
			return p[:]
		}))
	}
	return out
}

// System builds the preview problem of a double integrator for xInit.
func System(pc config.PreviewConfig, xInit []float64) preview.System {
	A, B := preview.DoubleIntegrator(pc.Dim, pc.Timestep)
	G, h := preview.BoxConstraint(pc.Dim, -pc.UMax, pc.UMax)
	sys := preview.System{
		A: A, B: B,
		XInit: xInit, XGoal: pc.XGoal,
		NbSteps: pc.NbSteps, Timestep: pc.Timestep,
		G: G, H: h,
		Wx: pc.Wx, Wu: pc.Wu,
		WxDiag: pc.WxDiag, WuDiag: pc.WuDiag,
	}
	E, f := positionBounds(pc)
	if E != nil {
		sys.E, sys.F = E, f
		sys.PosDim = pc.Dim
	}
	return sys
}

// positionBounds stacks PosMax and PosMin as E = [I; −I], F = [max; −min].
func positionBounds(pc config.PreviewConfig) (*mat.Dense, []float64) {
	m := len(pc.PosMax) + len(pc.PosMin)
	if m == 0 {
		return nil, nil
	}
	E := mat.NewDense(m, pc.Dim, nil)
	f := make([]float64, 0, m)
	row := 0
	for i, hi := range pc.PosMax {
		E.Set(row, i, 1)
		f = append(f, hi)
		row++
	}
	for i, lo := range pc.PosMin {
		E.Set(row, i, -1)
		f = append(f, -lo)
		row++
	}
	return E, f
}

// Planner returns a planner building a fresh controller per plan.
func Planner(pc config.PreviewConfig, opts ...preview.Option) sim.Planner {
	return func(xInit []float64) (preview.Controller, error) {
		return preview.New(pc.Kind, System(pc, xInit), opts...)
	}
}

// PreviewMetrics returns the metrics reported for a preview run.
func PreviewMetrics(pc config.PreviewConfig) []dynamo.Metric {
	out := []dynamo.Metric{
		metrics.NewControlEffort(),
		metrics.NewPeakControl(),
		metrics.NewGoalDistance(pc.XGoal[:pc.Dim]),
	}
	if len(pc.PosMin) > 0 || len(pc.PosMax) > 0 {
		out = append(out, metrics.NewBoundCompliance("pos_bounds", pc.PosMin, pc.PosMax, 1e-3))
	}
	return out
}
