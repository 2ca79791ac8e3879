package scenario

import (
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/san-kum/qpctl/internal/config"
	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/preview"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func f64(v float64) *float64 { return &v }

func TestBuildArm(t *testing.T) {
	arm, err := BuildArm(config.RobotConfig{
		Links:  []float64{1, 1, 1},
		Q:      []float64{0.1, 0.2, 0.3},
		QMax:   []float64{1, 1, 1},
		Active: []int{0, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if arm.NbDOFs() != 3 {
		t.Errorf("NbDOFs = %d, want 3", arm.NbDOFs())
	}
	if got := arm.ActiveDOFs(); len(got) != 2 || got[1] != 2 {
		t.Errorf("ActiveDOFs = %v", got)
	}
	js := arm.JointState()
	if js.QMax[0] != 1 || js.QMin[0] >= 0 {
		t.Errorf("limits not merged: qmin=%v qmax=%v", js.QMin, js.QMax)
	}

	if _, err := BuildArm(config.RobotConfig{Links: []float64{1, 1}, Q: []float64{0}}); err == nil {
		t.Error("expected error for short q")
	}
}

func TestRegistryBuildTask(t *testing.T) {
	arm, _ := BuildArm(config.RobotConfig{Links: []float64{1, 1, 1}})
	r := NewRegistry()

	tests := []struct {
		name    string
		tc      config.TaskConfig
		wantErr bool
	}{
		{"posture", config.TaskConfig{Name: "p", Type: ik.TypePosture, Target: []float64{0, 0, 0}}, false},
		{"posture short", config.TaskConfig{Name: "p", Type: ik.TypePosture, Target: []float64{0}}, true},
		{"dof", config.TaskConfig{Name: "d", Type: ik.TypeDOF, DOF: 1, Target: []float64{0.5}}, false},
		{"dof out of range", config.TaskConfig{Name: "d", Type: ik.TypeDOF, DOF: 3, Target: []float64{0.5}}, true},
		{"position", config.TaskConfig{Name: "x", Type: ik.TypePosition, Link: 2, Target: []float64{1, 1}}, false},
		{"position 3d", config.TaskConfig{Name: "x", Type: ik.TypePosition, Link: 2, Target: []float64{1, 1, 1}}, true},
		{"unknown", config.TaskConfig{Name: "u", Type: "gaze"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := r.BuildTask(tt.tc, arm)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && task.Name() != tt.tc.Name {
				t.Errorf("Name = %q, want %q", task.Name(), tt.tc.Name)
			}
		})
	}

	task, err := r.BuildTask(config.TaskConfig{Name: "g", Type: ik.TypePosture, Target: []float64{0, 0, 0}, Gain: f64(0.3), Weight: f64(2)}, arm)
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := task.Gain(); !ok || g != 0.3 {
		t.Errorf("Gain = %v, %v", g, ok)
	}
	if w, ok := task.Weight(); !ok || w != 2 {
		t.Errorf("Weight = %v, %v", w, ok)
	}

	types := r.ListTaskTypes()
	if len(types) != 3 || types[0] != ik.TypeDOF {
		t.Errorf("ListTaskTypes = %v", types)
	}
}

func TestIKSync(t *testing.T) {
	cfg := config.DefaultConfig()
	s, err := NewIK(cfg, quiet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Solver.Len() != len(cfg.Tasks) {
		t.Fatalf("Len = %d, want %d", s.Solver.Len(), len(cfg.Tasks))
	}

	diff, err := s.Sync(cfg.Tasks)
	if err != nil || !diff.Empty() {
		t.Fatalf("unchanged sync: diff=%+v err=%v", diff, err)
	}

	tasks := append([]config.TaskConfig(nil), cfg.Tasks...)
	tasks[0].Target = []float64{1, 1}
	tasks = tasks[:1]
	tasks = append(tasks, config.TaskConfig{Name: "elbow", Type: ik.TypeDOF, DOF: 1, Target: []float64{0.2}})

	diff, err = s.Sync(tasks)
	if err != nil {
		t.Fatal(err)
	}
	want := Diff{Added: []string{"elbow"}, Removed: []string{"posture"}, Replaced: []string{"reach"}}
	if !reflect.DeepEqual(diff, want) {
		t.Errorf("diff = %+v, want %+v", diff, want)
	}
	if s.Solver.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Solver.Len())
	}
	if _, ok := s.Solver.Task("elbow"); !ok {
		t.Error("elbow task not registered")
	}
	if tasks := s.Solver.Tasks(); !reflect.DeepEqual(tasks, []string{"elbow", "reach"}) {
		t.Errorf("Tasks = %v", tasks)
	}

	broken := append([]config.TaskConfig(nil), tasks...)
	broken[0].Type = "gaze"
	reach, _ := s.Solver.Task("reach")
	if _, err := s.Sync(broken); err == nil {
		t.Error("expected error for a changed task of unknown type")
	}
	if got, ok := s.Solver.Task("reach"); !ok || got != reach {
		t.Error("failed replacement dropped the previous reach task")
	}

	bad := append(tasks, config.TaskConfig{Name: "bad", Type: "gaze"})
	if _, err := s.Sync(bad); err == nil {
		t.Error("expected error for unknown task type")
	}
	if s.Solver.Len() != 2 {
		t.Errorf("Len after failed add = %d, want 2", s.Solver.Len())
	}
}

func TestIKMetrics(t *testing.T) {
	s, err := NewIK(config.DefaultConfig(), quiet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ms := s.Metrics()
	var found bool
	for _, m := range ms {
		if m.Name() == "reach_error" {
			found = true
			m.Observe(s.Arm.Q(), nil, 0)
			if v := m.Value(); math.IsNaN(v) || v <= 0 {
				t.Errorf("reach_error = %v", v)
			}
		}
	}
	if !found {
		t.Errorf("no reach_error metric among %d", len(ms))
	}
}

func TestSystemPositionBounds(t *testing.T) {
	pc := config.DefaultConfig().Preview
	pc.PosMax = []float64{0.8, 0.4}
	pc.PosMin = []float64{-1, -1}

	sys := System(pc, pc.XInit)
	if sys.E == nil {
		t.Fatal("E not set")
	}
	if r, c := sys.E.Dims(); r != 4 || c != pc.Dim {
		t.Errorf("E is %dx%d, want 4x%d", r, c, pc.Dim)
	}
	if sys.F[0] != 0.8 || sys.F[3] != 1 {
		t.Errorf("F = %v", sys.F)
	}
	if err := sys.Validate(); err != nil {
		t.Fatal(err)
	}

	pc.PosMax, pc.PosMin = nil, nil
	if sys := System(pc, pc.XInit); sys.E != nil {
		t.Error("E set without bounds")
	}
}

func TestPlanner(t *testing.T) {
	pc := config.DefaultConfig().Preview
	for _, kind := range preview.Kinds() {
		pc.Kind = kind
		ctrl, err := Planner(pc)(pc.XInit)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		ctrl.ComputeDynamics()
		plan, err := ctrl.ComputeControl()
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if plan.NbSteps() != pc.NbSteps {
			t.Errorf("%s: NbSteps = %d, want %d", kind, plan.NbSteps(), pc.NbSteps)
		}
	}

	pc.Kind = "mystery"
	if _, err := Planner(pc)(pc.XInit); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestPreviewMetrics(t *testing.T) {
	pc := config.DefaultConfig().Preview
	if n := len(PreviewMetrics(pc)); n != 3 {
		t.Errorf("got %d metrics, want 3", n)
	}
	pc.PosMax = []float64{1, 1}
	ms := PreviewMetrics(pc)
	if ms[len(ms)-1].Name() != "pos_bounds" {
		t.Errorf("last metric = %q", ms[len(ms)-1].Name())
	}
}

func TestApplyParam(t *testing.T) {
	cfg := config.DefaultConfig()
	for name, v := range map[string]float64{
		"doflim_gain":  0.3,
		"nb_steps":     12.4,
		"gain.reach":   0.5,
		"weight.reach": 3,
	} {
		if err := ApplyParam(cfg, name, v); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if cfg.Solver.DoflimGain != 0.3 || cfg.Preview.NbSteps != 12 {
		t.Errorf("doflim_gain=%v nb_steps=%d", cfg.Solver.DoflimGain, cfg.Preview.NbSteps)
	}
	if *cfg.Tasks[0].Gain != 0.5 || *cfg.Tasks[0].Weight != 3 {
		t.Errorf("reach gain=%v weight=%v", *cfg.Tasks[0].Gain, *cfg.Tasks[0].Weight)
	}

	for _, bad := range []string{"gain.elbow", "bias.reach", "speed"} {
		if err := ApplyParam(cfg, bad, 1); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}
