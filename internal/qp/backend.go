package qp

import (
	"fmt"
	"sort"
)

var backends = map[string]func(Settings) Solver{
	"admm": func(s Settings) Solver { return NewADMM(s) },
}

// DefaultBackend is used when no backend name is configured.
const DefaultBackend = "admm"

// New returns the backend registered under name.
func New(name string, s Settings) (Solver, error) {
	if name == "" {
		name = DefaultBackend
	}
	fn, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown qp backend: %s (available: %v)", name, Names())
	}
	return fn(s), nil
}

// Names lists the registered backends.
func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
