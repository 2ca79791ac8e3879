package scenario

import (
	"fmt"
	"sort"

	"github.com/san-kum/qpctl/internal/config"
	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/robot"
)

// TaskFactory builds a task from its config for the given arm.
type TaskFactory func(tc config.TaskConfig, arm *robot.PlanarArm) (ik.Task, error)

// Registry maps task types to factories.
type Registry struct {
	tasks map[string]TaskFactory
}

func NewRegistry() *Registry {
	r := &Registry{tasks: make(map[string]TaskFactory)}

	r.tasks[ik.TypePosture] = func(tc config.TaskConfig, arm *robot.PlanarArm) (ik.Task, error) {
		if len(tc.Target) != arm.NbDOFs() {
			return nil, fmt.Errorf("task %q: posture target has %d entries, arm has %d joints", tc.Name, len(tc.Target), arm.NbDOFs())
		}
		return ik.NewPostureTask(tc.Name, arm, tc.Target), nil
	}
	r.tasks[ik.TypeDOF] = func(tc config.TaskConfig, arm *robot.PlanarArm) (ik.Task, error) {
		if tc.DOF < 0 || tc.DOF >= arm.NbDOFs() || len(tc.Target) != 1 {
			return nil, fmt.Errorf("task %q: invalid dof %d or target %v", tc.Name, tc.DOF, tc.Target)
		}
		return ik.NewDOFTask(tc.Name, arm, tc.DOF, tc.Target[0]), nil
	}
	r.tasks[ik.TypePosition] = func(tc config.TaskConfig, arm *robot.PlanarArm) (ik.Task, error) {
		if tc.Link < 0 || tc.Link >= arm.NbDOFs() || len(tc.Target) != 2 {
			return nil, fmt.Errorf("task %q: invalid link %d or target %v", tc.Name, tc.Link, tc.Target)
		}
		return ik.NewPositionTask(tc.Name, arm, tc.Link, [2]float64{tc.Target[0], tc.Target[1]}), nil
	}

	return r
}

// Register adds or replaces the factory for a task type.
func (r *Registry) Register(typ string, f TaskFactory) {
	r.tasks[typ] = f
}

// BuildTask creates the task and applies the configured gain and weight.
func (r *Registry) BuildTask(tc config.TaskConfig, arm *robot.PlanarArm) (ik.Task, error) {
	fn, ok := r.tasks[tc.Type]
	if !ok {
		return nil, fmt.Errorf("unknown task type: %s", tc.Type)
	}
	task, err := fn(tc, arm)
	if err != nil {
		return nil, err
	}
	if tc.Gain != nil {
		task.SetGain(*tc.Gain)
	}
	if tc.Weight != nil {
		task.SetWeight(*tc.Weight)
	}
	return task, nil
}

func (r *Registry) ListTaskTypes() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
