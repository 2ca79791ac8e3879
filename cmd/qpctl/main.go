package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/qpctl/internal/config"
	"github.com/san-kum/qpctl/internal/preview"
	"github.com/san-kum/qpctl/internal/qp"
	"github.com/san-kum/qpctl/internal/storage"
	"github.com/san-kum/qpctl/internal/telemetry"
	"github.com/san-kum/qpctl/internal/viz"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	dataDir    string
	configFile string
	preset     string
	dt         float64
	duration   float64
	backend    string
	logLevel   string
	noSave     bool
	jsonOut    bool
	live       bool
	watch      bool
	theme      string
	hold       bool
	kind       string
	nbSteps    int
	replan     int
	syncPlan   bool
	columns    []string
	svgX       string
	svgY       string
	svgOut     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "qpctl",
		Short:         "quadratic-programming inverse kinematics and preview control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".qpctl", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	ikCmd := &cobra.Command{
		Use:   "ik",
		Short: "run the velocity IK solver on a planar arm",
		Args:  cobra.NoArgs,
		RunE:  runIK,
	}
	addRunFlags(ikCmd)
	ikCmd.Flags().BoolVar(&watch, "watch", false, "reload tasks when the config file changes")

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "run receding-horizon preview control on a double integrator",
		Args:  cobra.NoArgs,
		RunE:  runPreview,
	}
	addRunFlags(previewCmd)
	previewCmd.Flags().StringVar(&kind, "kind", "", "controller kind ("+strings.Join(preview.Kinds(), ", ")+")")
	previewCmd.Flags().IntVar(&nbSteps, "steps", 0, "horizon length")
	previewCmd.Flags().IntVar(&replan, "replan", 0, "ticks between two plans")
	previewCmd.Flags().BoolVar(&syncPlan, "sync", false, "plan on the tick goroutine")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot (default all)")

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print the metadata and metrics of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "print metadata as JSON")

	presetsCmd := &cobra.Command{
		Use:   "presets [kind]",
		Short: "list presets (kinds: " + strings.Join(config.ListKinds(), ", ") + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "print the effective config, or write it to path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	configCmd.Flags().StringVar(&kind, "kind", "ik", "preset kind")

	tuneCmd := &cobra.Command{
		Use:   "tune [ik|preview]",
		Short: "grid-search parameters against a run metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runTune,
	}
	tuneCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	tuneCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "grid axis, name=v1,v2 or name=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "control_effort", "metric to minimize")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "export the path of two columns of a stored run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVar(&svgX, "x", "x0", "column for the horizontal axis")
	svgCmd.Flags().StringVar(&svgY, "y", "x1", "column for the vertical axis")
	svgCmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default <run_id>.svg)")

	rootCmd.AddCommand(ikCmd, previewCmd, listCmd, plotCmd, showCmd, presetsCmd, configCmd, tuneCmd, svgCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.ErrorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&backend, "backend", qp.DefaultBackend, "qp backend ("+strings.Join(qp.Names(), ", ")+")")
	cmd.Flags().BoolVar(&hold, "hold", false, "hold the last command when a tick is infeasible")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the run as JSON")
	cmd.Flags().BoolVar(&live, "live", false, "follow the run in the terminal")
	cmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "live view theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
}

// loadConfig layers defaults, preset, config file and explicit flags.
func loadConfig(cmd *cobra.Command, presetKind string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(presetKind, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(presetKind))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("hold") {
		cfg.HoldOnInfeasible = hold
	}
	if flags.Changed("kind") {
		cfg.Preview.Kind = kind
	}
	if flags.Changed("steps") {
		cfg.Preview.NbSteps = nbSteps
	}
	if flags.Changed("replan") {
		cfg.Preview.Replan = replan
	}
	if flags.Changed("sync") {
		cfg.Preview.Sync = syncPlan
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env bundles the ambient services of one command.
type env struct {
	logger   *slog.Logger
	provider *telemetry.Provider
	metrics  *telemetry.Metrics
}

func newEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	var out io.Writer = os.Stderr
	if live {
		out = io.Discard
	}
	logger := telemetry.NewLogger(cfg.Logging, out)
	slog.SetDefault(logger)

	prov, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	m, err := telemetry.NewMetrics(prov.Meter)
	if err != nil {
		prov.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry metrics: %w", err)
	}
	return &env{logger: logger, provider: prov, metrics: m}, nil
}

func (e *env) close() {
	if err := e.provider.Shutdown(context.Background()); err != nil {
		e.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tDURATION\tDT\tBACKEND\tCTRL\tFAIL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%d\n",
			run.ID,
			run.Kind,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Backend,
			run.Controller,
			run.Failures,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	cols, _, rows, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}
	viz.Summary(os.Stdout, *meta)
	fmt.Println()
	return viz.Plot(os.Stdout, cols, rows, columns)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	cols, _, rows, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}
	pts, err := viz.ColumnPoints(cols, rows, svgX, svgY)
	if err != nil {
		return err
	}
	out := svgOut
	if out == "" {
		out = args[0] + ".svg"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := viz.TrajectorySVG(f, pts, nil, 800, 600, "#00ff88"); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}
	viz.Summary(os.Stdout, *meta)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	kinds := config.ListKinds()
	if len(args) == 1 {
		kinds = args[:1]
	}
	for _, k := range kinds {
		names := config.ListPresets(k)
		if len(names) == 0 {
			return fmt.Errorf("no presets for kind: %s", k)
		}
		fmt.Printf("%s:\n", viz.TitleStyle.Render(k))
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}
	}
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(kind, preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(kind))
		}
	}
	if len(args) == 1 {
		if err := config.Save(args[0], cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
