package config

import (
	"sort"

	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/preview"
)

func ptr(v float64) *float64 { return &v }

// Presets are keyed by run kind ("ik" or "preview") then preset name.
// Each preset is a function so callers always get a fresh copy.
var Presets = map[string]map[string]func() *Config{
	"ik": {
		"reach": func() *Config {
			return DefaultConfig()
		},
		"posture": func() *Config {
			cfg := DefaultConfig()
			cfg.Tasks = []TaskConfig{
				{Name: "posture", Type: ik.TypePosture, Weight: ptr(1), Target: []float64{1.0, -0.5, 0.8}},
			}
			return cfg
		},
		"wrist": func() *Config {
			cfg := DefaultConfig()
			cfg.Duration = 2.0
			cfg.Robot.QMax = []float64{3.14, 1.2, 0.6}
			cfg.Robot.QMin = []float64{-3.14, -1.2, -0.6}
			cfg.Tasks = []TaskConfig{
				{Name: "reach", Type: ik.TypePosition, Link: 2, Target: []float64{0.5, 2.2}},
				{Name: "wrist", Type: ik.TypeDOF, DOF: 2, Gain: ptr(0.5), Weight: ptr(0.1), Target: []float64{1.5}},
				{Name: "posture", Type: ik.TypePosture, Target: []float64{0, 0, 0}},
			}
			return cfg
		},
		"locked-base": func() *Config {
			cfg := DefaultConfig()
			cfg.Robot.Active = []int{1, 2}
			cfg.Tasks = []TaskConfig{
				{Name: "reach", Type: ik.TypePosition, Link: 2, Target: []float64{2.0, 1.0}},
			}
			return cfg
		},
	},
	"preview": {
		"com": func() *Config {
			return DefaultConfig()
		},
		"bounded": func() *Config {
			cfg := DefaultConfig()
			cfg.Preview.PosMax = []float64{0.8, 0.4}
			cfg.Preview.PosMin = []float64{-0.2, -0.2}
			return cfg
		},
		"weighted": func() *Config {
			cfg := DefaultConfig()
			cfg.Preview.Kind = preview.KindWeighted
			cfg.Preview.WxDiag = []float64{1000, 1000, 10, 10}
			cfg.Preview.WuDiag = []float64{1, 1}
			return cfg
		},
		"long-horizon": func() *Config {
			cfg := DefaultConfig()
			cfg.Duration = 6.0
			cfg.Preview.NbSteps = 40
			cfg.Preview.UMax = 2.0
			cfg.Preview.XGoal = []float64{2, -1, 0, 0}
			return cfg
		},
	},
}

// GetPreset returns a fresh copy of a preset, or nil when unknown.
func GetPreset(kind, name string) *Config {
	presets, ok := Presets[kind]
	if !ok {
		return nil
	}
	build, ok := presets[name]
	if !ok {
		return nil
	}
	return build()
}

// ListPresets returns the sorted preset names for a run kind.
func ListPresets(kind string) []string {
	presets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListKinds() []string {
	kinds := make([]string, 0, len(Presets))
	for k := range Presets {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
