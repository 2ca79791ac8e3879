// Package tune searches solver parameters on a grid, scoring each point by
// a metric of a full closed-loop run.
package tune

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Param is one grid axis.
type Param struct {
	Name   string
	Values []float64
}

// ParseParam reads "name=v1,v2,..." or "name=lo:hi:n" (n evenly spaced
// values, both ends included).
func ParseParam(s string) (Param, error) {
	name, values, ok := strings.Cut(s, "=")
	if !ok || name == "" || values == "" {
		return Param{}, fmt.Errorf("param %q: want name=v1,v2 or name=lo:hi:n", s)
	}
	p := Param{Name: name}

	if parts := strings.Split(values, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return Param{}, fmt.Errorf("param %q: %w", s, err)
		}
		if n < 1 {
			return Param{}, fmt.Errorf("param %q: need at least one value", s)
		}
		if n == 1 {
			p.Values = []float64{lo}
			return p, nil
		}
		for i := 0; i < n; i++ {
			p.Values = append(p.Values, lo+(hi-lo)*float64(i)/float64(n-1))
		}
		return p, nil
	}

	for _, f := range strings.Split(values, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Param{}, fmt.Errorf("param %q: %w", s, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Eval runs one grid point and returns the score to minimize.
type Eval func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	params []Param
}

func NewGridSearch(params []Param) *GridSearch {
	return &GridSearch{params: params}
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, p := range g.params {
		n *= len(p.Values)
	}
	return n
}

// Search evaluates every grid point and returns the best one along with
// all trials in evaluation order. Failed or NaN trials never win. It fails
// when the context is cancelled or no trial succeeds.
func (g *GridSearch) Search(ctx context.Context, eval Eval) (Trial, []Trial, error) {
	trials := make([]Trial, 0, g.Size())
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, eval, &trials); err != nil {
		return Trial{}, trials, err
	}

	best := -1
	for i, t := range trials {
		if t.Err != nil || math.IsNaN(t.Value) {
			continue
		}
		if best < 0 || t.Value < trials[best].Value {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, trials, fmt.Errorf("all %d trials failed", len(trials))
	}
	return trials[best], trials, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, eval Eval, trials *[]Trial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.params) {
		params := maps.Clone(current)
		val, err := eval(ctx, params)
		*trials = append(*trials, Trial{Params: params, Value: val, Err: err})
		return nil
	}

	p := g.params[depth]
	for _, v := range p.Values {
		current[p.Name] = v
		if err := g.searchRecursive(ctx, depth+1, current, eval, trials); err != nil {
			return err
		}
	}
	delete(current, p.Name)
	return nil
}

// Format renders params as "a=1 b=2" with sorted names.
func Format(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, " ")
}
