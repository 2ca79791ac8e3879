package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/san-kum/qpctl/internal/config"
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/preview"
	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/scenario"
	"github.com/san-kum/qpctl/internal/sim"
	"github.com/san-kum/qpctl/internal/tune"
	"github.com/san-kum/qpctl/internal/viz"
	"github.com/spf13/cobra"
)

var (
	tuneParams []string
	tuneMetric string
)

func runTune(cmd *cobra.Command, args []string) error {
	runKind := args[0]
	if runKind != "ik" && runKind != "preview" {
		return fmt.Errorf("unknown run kind %q (ik, preview)", runKind)
	}
	params := make([]tune.Param, 0, len(tuneParams))
	for _, s := range tuneParams {
		p, err := tune.ParseParam(s)
		if err != nil {
			return err
		}
		params = append(params, p)
	}
	if len(params) == 0 {
		return fmt.Errorf("no --param given (tunable: %v)", scenario.TunableParams)
	}

	base, err := loadConfig(cmd, runKind)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	e, err := newEnv(ctx, base)
	if err != nil {
		return err
	}
	defer e.close()

	g := tune.NewGridSearch(params)
	e.logger.Info("grid search started", "points", g.Size(), "metric", tuneMetric)

	eval := func(ctx context.Context, p map[string]float64) (float64, error) {
		cfg, err := loadConfig(cmd, runKind)
		if err != nil {
			return 0, err
		}
		for name, v := range p {
			if err := scenario.ApplyParam(cfg, name, v); err != nil {
				return 0, err
			}
		}
		if err := cfg.Validate(); err != nil {
			return 0, err
		}
		res, err := headless(ctx, cfg, runKind, e)
		if err != nil {
			return 0, err
		}
		v, ok := res.Metrics[tuneMetric]
		if !ok {
			return 0, fmt.Errorf("run reported no metric %q", tuneMetric)
		}
		if len(res.Errors) > 0 {
			return math.Inf(1), nil
		}
		return v, nil
	}

	best, trials, err := g.Search(ctx, eval)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PARAMS\t%s\n", tuneMetric)
	for _, t := range trials {
		val := fmt.Sprintf("%.6g", t.Value)
		if t.Err != nil {
			val = "error: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", tune.Format(t.Params), val)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.LabelStyle.Render("best") + viz.ValueStyle.Render(fmt.Sprintf("%s  %s=%.6g", tune.Format(best.Params), tuneMetric, best.Value)))
	return nil
}

// headless runs one closed loop without pacing, storage or live view.
func headless(ctx context.Context, cfg *config.Config, runKind string, e *env) (*dynamo.Result, error) {
	opts := []sim.Option{sim.WithLogger(e.logger), sim.WithTelemetry(e.metrics)}
	simCfg := sim.Config{Dt: cfg.Dt, Duration: cfg.Duration, HoldOnInfeasible: cfg.HoldOnInfeasible}

	if runKind == "ik" {
		s, err := scenario.NewIK(cfg, e.logger, e.metrics)
		if err != nil {
			return nil, err
		}
		for _, m := range s.Metrics() {
			opts = append(opts, sim.WithMetric(m))
		}
		return sim.NewIKRunner(s.Solver, s.Arm, opts...).Run(ctx, simCfg)
	}

	solver, err := qp.New(cfg.Backend, cfg.QP)
	if err != nil {
		return nil, err
	}
	pc := cfg.Preview
	planner := scenario.Planner(pc, preview.WithBackend(solver), preview.WithLogger(e.logger), preview.WithMetrics(e.metrics))
	for _, m := range scenario.PreviewMetrics(pc) {
		opts = append(opts, sim.WithMetric(m))
	}
	return sim.NewPreviewRunner(planner, pc.Dim, opts...).Run(ctx, sim.PreviewConfig{
		Config: simCfg,
		XInit:  pc.XInit,
		Replan: pc.Replan,
		Sync:   true,
	})
}
