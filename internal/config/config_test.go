package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/qpctl/internal/preview"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Backend != "admm" {
		t.Errorf("expected admm backend, got %s", cfg.Backend)
	}
	if len(cfg.Tasks) == 0 {
		t.Error("expected default tasks")
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, kind := range ListKinds() {
		for _, name := range ListPresets(kind) {
			cfg := GetPreset(kind, name)
			if cfg == nil {
				t.Fatalf("%s/%s: nil preset", kind, name)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", kind, name, err)
			}
		}
	}
}

func TestGetPreset_FreshCopy(t *testing.T) {
	a := GetPreset("ik", "reach")
	a.Tasks[0].Name = "mutated"
	b := GetPreset("ik", "reach")
	if b.Tasks[0].Name == "mutated" {
		t.Error("presets share state between calls")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("ik", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "reach"); cfg != nil {
		t.Error("expected nil for nonexistent kind")
	}
	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent kind")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
dt: 0.02
solver:
  doflim_gain: 0.3
tasks:
  - name: elbow
    type: dof
    dof: 1
    gain: 0.5
    weight: 2
    target: [0.7]
preview:
  kind: weighted
  nb_steps: 5
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Dt != 0.02 || cfg.Solver.DoflimGain != 0.3 {
		t.Errorf("scalars not decoded: dt=%g doflim=%g", cfg.Dt, cfg.Solver.DoflimGain)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Name != "elbow" {
		t.Fatalf("tasks not replaced: %+v", cfg.Tasks)
	}
	if g := cfg.Tasks[0].Gain; g == nil || *g != 0.5 {
		t.Errorf("gain not decoded: %v", g)
	}
	if cfg.Duration != DefaultDuration {
		t.Errorf("duration default lost: %g", cfg.Duration)
	}
	if cfg.Preview.NbSteps != 5 || cfg.Preview.Kind != "weighted" {
		t.Errorf("preview not decoded: %+v", cfg.Preview)
	}
	if cfg.Solver.DefaultWeights["position"] != 1 {
		t.Errorf("default weights lost: %v", cfg.Solver.DefaultWeights)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"unknown backend", func(c *Config) { c.Backend = "osqp" }},
		{"bad doflim gain", func(c *Config) { c.Solver.DoflimGain = 2 }},
		{"no links", func(c *Config) { c.Robot.Links = nil }},
		{"q length", func(c *Config) { c.Robot.Q = []float64{0} }},
		{"duplicate task", func(c *Config) { c.Tasks = append(c.Tasks, c.Tasks[0]) }},
		{"unknown task type", func(c *Config) { c.Tasks[0].Type = "gaze" }},
		{"posture length", func(c *Config) { c.Tasks[1].Target = []float64{0} }},
		{"link out of range", func(c *Config) { c.Tasks[0].Link = 7 }},
		{"preview kind", func(c *Config) { c.Preview.Kind = "copra" }},
		{"preview x_init", func(c *Config) { c.Preview.XInit = []float64{0} }},
		{"preview replan", func(c *Config) { c.Preview.Replan = 0 }},
		{"weighted with bounds", func(c *Config) {
			c.Preview.Kind = preview.KindWeighted
			c.Preview.PosMax = []float64{1, 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qpctl.yaml")
	cfg := GetPreset("preview", "bounded")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Preview.PosMax) != 2 || loaded.Preview.PosMax[0] != 0.8 {
		t.Errorf("pos_max not round-tripped: %v", loaded.Preview.PosMax)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("dt: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
