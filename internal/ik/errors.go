package ik

import (
	"errors"
	"fmt"
)

// Registration failure kinds. Match them with errors.Is.
var (
	ErrDuplicateTask = errors.New("ik: duplicate task name")
	ErrUnknownTask   = errors.New("ik: no task with that name")
	ErrMissingWeight = errors.New("ik: task has no weight and its type has no default")
	ErrInvalidGain   = errors.New("ik: task gain must lie in (0, 1]")
	ErrInvalidWeight = errors.New("ik: task weight must be non-negative")
)

// TaskError reports why a task could not be registered or replaced.
type TaskError struct {
	Kind error
	Task string
	Msg  string
}

func (e *TaskError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%v: %q", e.Kind, e.Task)
	}
	return fmt.Sprintf("%v: %q: %s", e.Kind, e.Task, e.Msg)
}

func (e *TaskError) Unwrap() error {
	return e.Kind
}
