package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/qpctl/internal/config"
	"github.com/san-kum/qpctl/internal/dynamo"
	"github.com/san-kum/qpctl/internal/ik"
	"github.com/san-kum/qpctl/internal/preview"
	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/scenario"
	"github.com/san-kum/qpctl/internal/sim"
	"github.com/san-kum/qpctl/internal/storage"
	"github.com/san-kum/qpctl/internal/viz"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// loop runs one closed loop and returns its result.
type loop func(ctx context.Context, opts ...sim.Option) (*dynamo.Result, error)

func runIK(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "ik")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	e, err := newEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	s, err := scenario.NewIK(cfg, e.logger, e.metrics)
	if err != nil {
		return err
	}
	if watch {
		if configFile == "" {
			return fmt.Errorf("--watch needs --config")
		}
		w := config.NewWatcher(configFile, e.logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		go syncTasks(s, w.Events(), e)
	}

	simCfg := sim.Config{
		Dt:               cfg.Dt,
		Duration:         cfg.Duration,
		HoldOnInfeasible: cfg.HoldOnInfeasible,
		Realtime:         live || watch,
	}
	run := func(ctx context.Context, opts ...sim.Option) (*dynamo.Result, error) {
		for _, m := range s.Metrics() {
			opts = append(opts, sim.WithMetric(m))
		}
		return sim.NewIKRunner(s.Solver, s.Arm, opts...).Run(ctx, simCfg)
	}

	var targets [][2]float64
	for _, tc := range cfg.Tasks {
		if tc.Type == ik.TypePosition && len(tc.Target) == 2 {
			targets = append(targets, [2]float64{tc.Target[0], tc.Target[1]})
		}
	}
	scene := viz.ArmScene{Links: s.Arm.Links(), Targets: targets}

	meta := storage.RunMetadata{
		Kind:     "ik",
		Preset:   preset,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
		Backend:  cfg.Backend,
		Tasks:    s.Solver.Tasks(),
	}
	return execute(ctx, e, meta, scene, run,
		attribute.Int("ik.tasks", s.Solver.Len()),
		attribute.Int("ik.dofs", s.Arm.NbDOFs()),
	)
}

// syncTasks applies reloaded task lists to the running solver.
func syncTasks(s *scenario.IK, events <-chan config.ReloadEvent, e *env) {
	for ev := range events {
		if ev.Err != nil {
			continue
		}
		if _, err := s.Sync(ev.Config.Tasks); err != nil {
			e.logger.Warn("some tasks were not applied", "error", err)
		}
	}
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "preview")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	e, err := newEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.close()

	solver, err := qp.New(cfg.Backend, cfg.QP)
	if err != nil {
		return err
	}
	pc := cfg.Preview
	planner := scenario.Planner(pc,
		preview.WithBackend(solver),
		preview.WithLogger(e.logger),
		preview.WithMetrics(e.metrics),
	)
	simCfg := sim.PreviewConfig{
		Config: sim.Config{
			Dt:               cfg.Dt,
			Duration:         cfg.Duration,
			HoldOnInfeasible: cfg.HoldOnInfeasible,
			Realtime:         live,
		},
		XInit:  pc.XInit,
		Replan: pc.Replan,
		Sync:   pc.Sync,
	}
	run := func(ctx context.Context, opts ...sim.Option) (*dynamo.Result, error) {
		for _, m := range scenario.PreviewMetrics(pc) {
			opts = append(opts, sim.WithMetric(m))
		}
		return sim.NewPreviewRunner(planner, pc.Dim, opts...).Run(ctx, simCfg)
	}

	meta := storage.RunMetadata{
		Kind:       "preview",
		Preset:     preset,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Backend:    cfg.Backend,
		Controller: pc.Kind,
	}
	scene := &viz.PointScene{Goal: pc.XGoal[:pc.Dim], Lo: pc.PosMin, Hi: pc.PosMax}
	return execute(ctx, e, meta, scene, run,
		attribute.String("preview.kind", pc.Kind),
		attribute.Int("preview.nb_steps", pc.NbSteps),
		attribute.Int("preview.replan", pc.Replan),
	)
}

// execute runs the loop inside a trace span, optionally behind the live
// view, then stores and reports the result.
func execute(ctx context.Context, e *env, meta storage.RunMetadata, scene viz.Scene, run loop, attrs ...attribute.KeyValue) error {
	ctx, span := e.provider.Tracer.Start(ctx, meta.Kind+".run", trace.WithAttributes(attrs...))
	defer span.End()

	opts := []sim.Option{sim.WithLogger(e.logger), sim.WithTelemetry(e.metrics)}
	e.logger.Info("run started", "kind", meta.Kind, "backend", meta.Backend, "dt", meta.Dt, "duration", meta.Duration)
	start := time.Now()

	var (
		result *dynamo.Result
		err    error
	)
	if live {
		result, err = runLive(ctx, meta, scene, run, opts)
	} else {
		result, err = run(ctx, opts...)
	}
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if result == nil {
		return err
	}
	span.SetAttributes(
		attribute.Int("run.steps", len(result.Times)),
		attribute.Int("run.failures", len(result.Errors)),
	)
	e.logger.Info("run finished", "elapsed", elapsed, "steps", len(result.Times), "failures", len(result.Errors), "error", err)

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil && len(result.Times) == 0 {
		return err
	}
	meta.Metrics = result.Metrics
	if !noSave {
		st := storage.New(dataDir)
		if serr := st.Init(); serr != nil {
			return serr
		}
		id, serr := st.Save(meta, result)
		if serr != nil {
			return serr
		}
		meta.ID = id
	}
	meta.Steps = len(result.Times)
	meta.Failures = len(result.Errors)

	if jsonOut {
		if jerr := storage.ExportJSON(os.Stdout, meta, result); jerr != nil {
			return jerr
		}
		return err
	}
	if !live {
		fmt.Printf("completed in %v\n", elapsed)
		viz.Summary(os.Stdout, meta)
	}
	return err
}

// runLive drives the loop on a goroutine and follows it with the live view.
// Quitting the view cancels the run.
func runLive(ctx context.Context, meta storage.RunMetadata, scene viz.Scene, run loop, opts []sim.Option) (*dynamo.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan viz.Frame, 64)
	opts = append(opts, sim.WithObserver(viz.FrameObserver(frames)))
	prog := tea.NewProgram(viz.NewLive(meta.Kind, scene, frames).WithTheme(theme), tea.WithContext(ctx))

	type outcome struct {
		result *dynamo.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := run(ctx, opts...)
		done <- outcome{res, err}
		msg := viz.DoneMsg{Err: err}
		if res != nil {
			msg.Summary = fmt.Sprintf("%d steps, %d failures", len(res.Times), len(res.Errors))
		}
		prog.Send(msg)
	}()

	_, perr := prog.Run()
	cancel()
	out := <-done
	if perr != nil && !errors.Is(perr, tea.ErrProgramKilled) && out.err == nil {
		return out.result, perr
	}
	return out.result, out.err
}
