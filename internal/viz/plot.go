package viz

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/storage"
)

const (
	plotHeight = 10
	plotWidth  = 80
)

// Column extracts column idx from rows, skipping short rows.
func Column(rows [][]float64, idx int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if idx < len(r) {
			out = append(out, r[idx])
		}
	}
	return out
}

// Plot writes one chart per selected column. An empty selection plots
// every column.
func Plot(w io.Writer, columns []string, rows [][]float64, selected []string) error {
	if len(rows) == 0 {
		return fmt.Errorf("no samples to plot")
	}
	idx := make([]int, 0, len(columns))
	if len(selected) == 0 {
		for i := range columns {
			idx = append(idx, i)
		}
	} else {
		for _, name := range selected {
			i := indexOf(columns, name)
			if i < 0 {
				return fmt.Errorf("unknown column %q (have %s)", name, strings.Join(columns, ", "))
			}
			idx = append(idx, i)
		}
	}

	for _, i := range idx {
		data := finite(Column(rows, i))
		if len(data) == 0 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(columns[i]),
		)
		if _, err := fmt.Fprintf(w, "%s\n\n", graph); err != nil {
			return err
		}
	}
	return nil
}

// PlotResult charts the states and controls of a finished run on shared
// axes.
func PlotResult(w io.Writer, result *dynamo.Result) error {
	if len(result.States) == 0 {
		return fmt.Errorf("no samples to plot")
	}
	states := make([][]float64, 0, len(result.States[0]))
	for i := range result.States[0] {
		if col := finite(stateColumn(result.States, i)); len(col) > 0 {
			states = append(states, col)
		}
	}
	if len(states) == 0 {
		return fmt.Errorf("no finite samples to plot")
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", asciigraph.PlotMany(states,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption("state"),
	)); err != nil {
		return err
	}

	var controls [][]float64
	for j := 0; ; j++ {
		col := make([]float64, 0, len(result.Controls))
		for _, u := range result.Controls {
			if j < len(u) {
				col = append(col, u[j])
			}
		}
		if len(col) == 0 {
			break
		}
		if col = finite(col); len(col) > 0 {
			controls = append(controls, col)
		}
	}
	if len(controls) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s\n\n", asciigraph.PlotMany(controls,
		asciigraph.Height(plotHeight/2),
		asciigraph.Width(plotWidth),
		asciigraph.Caption("control"),
	))
	return err
}

// Summary writes the metadata and metrics of a run.
func Summary(w io.Writer, meta storage.RunMetadata) {
	line := func(label, value string) {
		fmt.Fprintln(w, LabelStyle.Render(label)+ValueStyle.Render(value))
	}
	fmt.Fprintln(w, TitleStyle.Render(strings.ToUpper(meta.Kind)+" run"))
	if meta.ID != "" {
		line("id", meta.ID)
	}
	if meta.Preset != "" {
		line("preset", meta.Preset)
	}
	line("backend", meta.Backend)
	if meta.Controller != "" {
		line("controller", meta.Controller)
	}
	if len(meta.Tasks) > 0 {
		line("tasks", strings.Join(meta.Tasks, ", "))
	}
	line("steps", fmt.Sprintf("%d (dt=%g)", meta.Steps, meta.Dt))
	if meta.Failures > 0 {
		fmt.Fprintln(w, LabelStyle.Render("failures")+ErrorStyle.Render(fmt.Sprint(meta.Failures)))
	}

	names := make([]string, 0, len(meta.Metrics))
	for name := range meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		line(name, fmt.Sprintf("%.6g", meta.Metrics[name]))
	}
}

func stateColumn(states []dynamo.State, i int) []float64 {
	out := make([]float64, 0, len(states))
	for _, x := range states {
		if i < len(x) {
			out = append(out, x[i])
		}
	}
	return out
}

// finite drops NaN and infinite samples, which asciigraph cannot scale.
func finite(v []float64) []float64 {
	out := v[:0:0]
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
