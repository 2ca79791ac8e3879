package scenario

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/qpctl/internal/config"
)

// TunableParams lists the names accepted by ApplyParam. Task gains and
// weights are addressed as gain.<task> and weight.<task>.
var TunableParams = []string{
	"dt", "doflim_gain", "rho",
	"wx", "wu", "nb_steps", "umax", "timestep", "replan",
	"gain.<task>", "weight.<task>",
}

// ApplyParam sets one named parameter on cfg.
func ApplyParam(cfg *config.Config, name string, v float64) error {
	if prefix, task, ok := strings.Cut(name, "."); ok {
		for i := range cfg.Tasks {
			if cfg.Tasks[i].Name != task {
				continue
			}
			switch prefix {
			case "gain":
				cfg.Tasks[i].Gain = &v
			case "weight":
				cfg.Tasks[i].Weight = &v
			default:
				return fmt.Errorf("unknown task parameter %q", prefix)
			}
			return nil
		}
		return fmt.Errorf("no task named %q", task)
	}

	switch name {
	case "dt":
		cfg.Dt = v
	case "doflim_gain":
		cfg.Solver.DoflimGain = v
	case "rho":
		cfg.QP.Rho = v
	case "wx":
		cfg.Preview.Wx = v
	case "wu":
		cfg.Preview.Wu = v
	case "umax":
		cfg.Preview.UMax = v
	case "timestep":
		cfg.Preview.Timestep = v
	case "nb_steps":
		cfg.Preview.NbSteps = int(math.Round(v))
	case "replan":
		cfg.Preview.Replan = int(math.Round(v))
	default:
		return fmt.Errorf("unknown parameter %q (tunable: %s)", name, strings.Join(TunableParams, ", "))
	}
	return nil
}
