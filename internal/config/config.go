package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/preview"
	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/telemetry"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 3.0
	DefaultReplan   = 10
	DefaultNbSteps  = 20
	DefaultTimestep = 0.1
	DefaultUMax     = 5.0
)

type Config struct {
	Dt        float64             `yaml:"dt"`
	Duration  float64             `yaml:"duration"`
	Backend   string              `yaml:"backend"`
	QP        qp.Settings         `yaml:"qp"`
	Solver    ik.Config           `yaml:"solver"`
	Robot     RobotConfig         `yaml:"robot"`
	Tasks     []TaskConfig        `yaml:"tasks"`
	Preview   PreviewConfig       `yaml:"preview"`
	Logging   telemetry.LogConfig `yaml:"logging"`
	Telemetry telemetry.Config    `yaml:"telemetry"`

	// HoldOnInfeasible keeps the previous command when a tick fails
	// instead of stopping the run.
	HoldOnInfeasible bool `yaml:"hold_on_infeasible"`
}

// RobotConfig describes a planar arm. Empty limit slices keep the arm's
// defaults; an empty Active selects every joint.
type RobotConfig struct {
	Links  []float64 `yaml:"links"`
	Q      []float64 `yaml:"q"`
	QMin   []float64 `yaml:"q_min"`
	QMax   []float64 `yaml:"q_max"`
	QdMin  []float64 `yaml:"qd_min"`
	QdMax  []float64 `yaml:"qd_max"`
	Active []int     `yaml:"active"`
}

// TaskConfig declares one IK task. Target is interpreted by type: a full
// configuration for posture, one angle for dof, a point for position.
type TaskConfig struct {
	Name   string    `yaml:"name"`
	Type   string    `yaml:"type"`
	Gain   *float64  `yaml:"gain,omitempty"`
	Weight *float64  `yaml:"weight,omitempty"`
	Target []float64 `yaml:"target"`
	DOF    int       `yaml:"dof,omitempty"`
	Link   int       `yaml:"link,omitempty"`
}

// PreviewConfig describes a receding-horizon run on a double integrator of
// dimension Dim with acceleration bounds ±UMax.
type PreviewConfig struct {
	Kind     string    `yaml:"kind"`
	Dim      int       `yaml:"dim"`
	NbSteps  int       `yaml:"nb_steps"`
	Timestep float64   `yaml:"timestep"`
	Wx       float64   `yaml:"wx"`
	Wu       float64   `yaml:"wu"`
	WxDiag   []float64 `yaml:"wx_diag,omitempty"`
	WuDiag   []float64 `yaml:"wu_diag,omitempty"`
	UMax     float64   `yaml:"umax"`
	PosMin   []float64 `yaml:"pos_min,omitempty"`
	PosMax   []float64 `yaml:"pos_max,omitempty"`
	XInit    []float64 `yaml:"x_init"`
	XGoal    []float64 `yaml:"x_goal"`
	Replan   int       `yaml:"replan"`
	Sync     bool      `yaml:"sync"`
}

func DefaultConfig() *Config {
	return &Config{
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Backend:  qp.DefaultBackend,
		QP:       qp.DefaultSettings(),
		Solver:   ik.DefaultConfig(),
		Robot: RobotConfig{
			Links: []float64{1, 1, 1},
			Q:     []float64{0.1, 0.2, 0.1},
		},
		Tasks: []TaskConfig{
			{Name: "reach", Type: ik.TypePosition, Link: 2, Target: []float64{1.5, 1.5}},
			{Name: "posture", Type: ik.TypePosture, Target: []float64{0, 0, 0}},
		},
		Preview: PreviewConfig{
			Kind:     preview.KindCondensed,
			Dim:      2,
			NbSteps:  DefaultNbSteps,
			Timestep: DefaultTimestep,
			Wx:       preview.DefaultWx,
			Wu:       preview.DefaultWu,
			UMax:     DefaultUMax,
			XInit:    []float64{0, 0, 0, 0},
			XGoal:    []float64{1, 0.5, 0, 0},
			Replan:   DefaultReplan,
		},
		Logging: telemetry.LogConfig{Level: "info", Format: "text"},
		Telemetry: telemetry.Config{
			Exporter:    "stdout",
			ServiceName: "qpctl",
			SampleRate:  1.0,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return invalid("dt must be positive")
	}
	if c.Duration <= 0 {
		return invalid("duration must be positive")
	}
	if _, err := qp.New(c.Backend, c.QP); err != nil {
		return invalid("%v", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return invalid("solver: %v", err)
	}
	if err := c.Robot.validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Name == "" {
			return invalid("task %d has no name", i)
		}
		if seen[t.Name] {
			return invalid("duplicate task %q", t.Name)
		}
		seen[t.Name] = true
		if err := t.validate(len(c.Robot.Links)); err != nil {
			return err
		}
	}
	return c.Preview.validate()
}

func (r RobotConfig) validate() error {
	n := len(r.Links)
	if n == 0 {
		return invalid("robot needs at least one link")
	}
	for i, l := range r.Links {
		if l <= 0 {
			return invalid("link %d length must be positive", i)
		}
	}
	for name, v := range map[string][]float64{
		"q": r.Q, "q_min": r.QMin, "q_max": r.QMax, "qd_min": r.QdMin, "qd_max": r.QdMax,
	} {
		if len(v) != 0 && len(v) != n {
			return invalid("robot %s has %d entries, want %d", name, len(v), n)
		}
	}
	return nil
}

func (t TaskConfig) validate(nbDOFs int) error {
	switch t.Type {
	case ik.TypePosture:
		if len(t.Target) != nbDOFs {
			return invalid("task %q: posture target has %d entries, want %d", t.Name, len(t.Target), nbDOFs)
		}
	case ik.TypeDOF:
		if t.DOF < 0 || t.DOF >= nbDOFs {
			return invalid("task %q: dof %d out of range", t.Name, t.DOF)
		}
		if len(t.Target) != 1 {
			return invalid("task %q: dof target must have one entry", t.Name)
		}
	case ik.TypePosition:
		if t.Link < 0 || t.Link >= nbDOFs {
			return invalid("task %q: link %d out of range", t.Name, t.Link)
		}
		if len(t.Target) != 2 {
			return invalid("task %q: position target must have two entries", t.Name)
		}
	default:
		return invalid("task %q: unknown type %q", t.Name, t.Type)
	}
	return nil
}

func (p PreviewConfig) validate() error {
	if p.Kind != "" && !slices.Contains(preview.Kinds(), p.Kind) {
		return invalid("unknown preview kind %q (available: %v)", p.Kind, preview.Kinds())
	}
	if p.Dim < 1 {
		return invalid("preview dim must be at least 1")
	}
	if p.NbSteps < 1 {
		return invalid("preview nb_steps must be at least 1")
	}
	if p.Timestep <= 0 {
		return invalid("preview timestep must be positive")
	}
	if p.UMax <= 0 {
		return invalid("preview umax must be positive")
	}
	if p.Replan < 1 {
		return invalid("preview replan must be at least 1 tick")
	}
	if len(p.XInit) != 2*p.Dim || len(p.XGoal) != 2*p.Dim {
		return invalid("preview x_init/x_goal must have %d entries", 2*p.Dim)
	}
	if len(p.PosMin) != 0 && len(p.PosMin) != p.Dim {
		return invalid("preview pos_min must have %d entries", p.Dim)
	}
	if len(p.PosMax) != 0 && len(p.PosMax) != p.Dim {
		return invalid("preview pos_max must have %d entries", p.Dim)
	}
	if p.Kind == preview.KindWeighted && len(p.PosMin)+len(p.PosMax) > 0 {
		return invalid("preview kind %q takes no position bounds", p.Kind)
	}
	return nil
}
