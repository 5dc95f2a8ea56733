package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointsim/internal/analysis"
	"github.com/san-kum/jointsim/internal/automation"
	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/experiment"
	"github.com/san-kum/jointsim/internal/export"
	"github.com/san-kum/jointsim/internal/metrics"
	"github.com/san-kum/jointsim/internal/optim"
	"github.com/san-kum/jointsim/internal/sim"
	"github.com/san-kum/jointsim/internal/storage"
	"github.com/san-kum/jointsim/internal/viz"
)

var (
	dataDir  string
	logLevel string

	dt         float64
	duration   float64
	seed       int64
	iterations int
	posIters   int
	correction string
	noWarm     bool
	workers    int
	configFile string
	preset     string
	exportPath string

	metricsAddr string
	runs        int
	plotBody    string
	column      string
	svgPath     string
	tuneMetric  string
	tuneParams  []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "jointsim",
		Short:         "rigid body joint and contact solver lab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".jointsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	solverFlags(runCmd)
	runCmd.Flags().StringVar(&exportPath, "export", "", "also write samples to this file (.json or .csv)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot residual, energy and a body trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotBody, "body", "", "body to plot (default: first)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "run seeded copies of a scenario in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScenario,
	}
	solverFlags(benchCmd)
	benchCmd.Flags().IntVar(&runs, "runs", runtime.NumCPU(), "number of seeded runs")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run a scenario with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	solverFlags(liveCmd)
	liveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	presetsCmd := &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for scenario: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range reg.List() {
				s, _ := reg.Get(name)
				fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Description)
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the default config with every kind block expanded",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.DefaultConfig().WithBlocks()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			return enc.Encode(cfg)
		},
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a recorded column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&column, "column", "", "column to analyze (default: first body x)")

	traceCmd := &cobra.Command{
		Use:   "trace [run_id]",
		Short: "draw body paths in the xy plane as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  traceRun,
	}
	traceCmd.Flags().StringVarP(&svgPath, "out", "o", "trace.svg", "output file")

	tuneCmd := &cobra.Command{
		Use:   "tune [scenario]",
		Short: "grid search solver parameters",
		Long:  "grid search solver parameters, e.g. --param velocity_iterations=4,8,16 --param linear_baumgarte=0.1,0.2",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneScenario,
	}
	solverFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "max_residual", "metric to minimize")
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "name=v1,v2,... (repeatable)")

	batchCmd := &cobra.Command{
		Use:   "batch [script.yaml]",
		Short: "run a scripted sequence of runs and store each one",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, benchCmd, liveCmd, presetsCmd, scenariosCmd, configCmd, analyzeCmd, traceCmd, tuneCmd, batchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func solverFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "velocity iterations")
	cmd.Flags().IntVar(&posIters, "position-iterations", 0, "position iterations")
	cmd.Flags().StringVar(&correction, "correction", "", "baumgarte or post_stabilization")
	cmd.Flags().BoolVar(&noWarm, "no-warm-start", false, "disable warm starting")
	cmd.Flags().IntVar(&workers, "workers", 0, "solver workers (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

func newLogger(w *os.File) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig layers the preset, the config file and changed flags, in that
// order, over the defaults.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Scenario = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Scenario, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Scenario))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 {
			loaded.Scenario = args[0]
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
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("iterations") {
		cfg.Solver.VelocityIterations = iterations
	}
	if flags.Changed("position-iterations") {
		cfg.Solver.PositionIterations = posIters
	}
	if flags.Changed("correction") {
		cfg.Solver.Correction = correction
	}
	if noWarm {
		cfg.Solver.WarmStart = false
	}
	if flags.Changed("workers") {
		cfg.Solver.Workers = workers
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(experiment.NewRegistry(), cfg,
		experiment.WithLogger(logger),
		experiment.WithMetrics(metrics.Default()...),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s simulation...\n", cfg.Scenario)
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	if exportPath != "" {
		if err := exportResult(exportPath, cfg, result); err != nil {
			return err
		}
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	if result.Snapped > 0 {
		fmt.Printf("snapped joints: %d\n", result.Snapped)
	}
	fmt.Println("\nmetrics:")
	for _, m := range metrics.Default() {
		fmt.Printf("  %s: %.6f\n", m.Name(), result.Metrics[m.Name()])
	}
	return nil
}

func exportResult(path string, cfg *config.Config, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return storage.ExportCSV(f, result)
	case ".json":
		return storage.ExportJSON(f, cfg, result)
	default:
		return fmt.Errorf("unsupported export format: %s", path)
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
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tDURATION\tDT\tCORRECTION\tITER\tSNAPPED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Correction,
			run.Iterations,
			run.Snapped,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series.Rows) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(series.Rows))

	body := plotBody
	if body == "" && len(meta.Bodies) > 0 {
		body = meta.Bodies[0]
	}
	plots := []struct{ column, caption string }{
		{"residual", "constraint residual"},
		{"energy", "total energy"},
		{body + ".x", body + " x"},
		{body + ".y", body + " y"},
	}
	for _, p := range plots {
		data := series.Column(p.column)
		if data == nil {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	series, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(series.Header); err != nil {
		return err
	}
	for _, row := range series.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func benchScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	solverCfg, err := cfg.ToSolver()
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	build := func(seed int64) (*sim.World, error) {
		c := cfg.Clone()
		c.Seed = seed
		return reg.Build(c)
	}

	ens := sim.NewEnsemble(build, solverCfg, runs, cfg.Seed).
		WithMetrics(metrics.Default).
		WithWorkers(cfg.Solver.Workers)

	fmt.Printf("benchmarking %s: %d runs of %.1fs\n\n", cfg.Scenario, runs, cfg.Duration)
	start := time.Now()
	results, err := ens.Run(context.Background(), sim.Config{Dt: cfg.Dt, Duration: cfg.Duration, RecordEvery: 60})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tRESIDUAL\tMAX RESIDUAL\tDRIFT\tSNAPPED")
	total := 0
	for i, r := range results {
		total += r.StepsTaken
		fmt.Fprintf(w, "%d\t%d\t%.2e\t%.2e\t%.2e\t%d\n",
			cfg.Seed+int64(i), r.StepsTaken, r.Metrics["residual"], r.Metrics["max_residual"], r.EnergyDrift, r.Snapped)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d steps in %v (%.0f steps/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	// the terminal belongs to the live view, so logs go to a file
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(dataDir, "live.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := newLogger(logFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := []experiment.Option{experiment.WithLogger(logger)}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, experiment.WithRecorder(metrics.NewSolverCollector(reg)))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	m, err := viz.NewModel(experiment.NewRegistry(), cfg, opts...)
	if err != nil {
		return err
	}

	var updates chan viz.ConfigMsg
	if configFile != "" {
		updates = make(chan viz.ConfigMsg, 1)
		err := config.Watch(ctx, configFile, logger, func(next *config.Config, err error) {
			if next != nil && len(args) > 0 {
				next.Scenario = args[0]
			}
			select {
			case updates <- viz.ConfigMsg{Config: next, Err: err}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			return err
		}
	}

	return viz.Run(ctx, m, updates)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	name := column
	if name == "" && len(meta.Bodies) > 0 {
		name = meta.Bodies[0] + ".x"
	}
	data := series.Column(name)
	if len(data) < 4 {
		return fmt.Errorf("no data for column %q", name)
	}

	// samples are evenly spaced after the initial one
	sampleDt := (series.Times[len(series.Times)-1] - series.Times[0]) / float64(len(series.Times)-1)

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("column: %s\n\n", name)

	ps := analysis.PowerSpectrum(data)
	graph := asciigraph.Plot(ps[:max(len(ps)/4, 2)],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+name+")"),
	)
	fmt.Println(graph)
	fmt.Println()

	freq, _ := analysis.DominantFrequency(data, sampleDt)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

func traceRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}

	tracks := make([]export.Track, 0, len(meta.Bodies))
	for _, name := range meta.Bodies {
		xs, ys := series.Column(name+".x"), series.Column(name+".y")
		tr := export.Track{Name: name, Points: make([]mgl64.Vec2, len(xs))}
		for i := range xs {
			tr.Points[i] = mgl64.Vec2{xs[i], ys[i]}
		}
		tracks = append(tracks, tr)
	}

	if err := os.WriteFile(svgPath, []byte(export.TracksToSVG(tracks, 800, 800)), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %d tracks to %s\n", len(tracks), svgPath)
	return nil
}

func tuneScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}

	params := make([]optim.Param, 0, len(tuneParams))
	for _, arg := range tuneParams {
		name, list, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("bad --param %q: want name=v1,v2", arg)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("bad --param %q: %w", arg, err)
			}
			values = append(values, v)
		}
		p, err := optim.Lookup(name, values)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("tuning %s for minimum %s\n\n", cfg.Scenario, tuneMetric)
	best, trials, err := optim.NewGridSearch(params...).Search(ctx, experiment.NewRegistry(), cfg, tuneMetric,
		experiment.WithMetrics(metrics.Default()...))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, tr := range trials {
		var parts []string
		for _, p := range params {
			parts = append(parts, fmt.Sprintf("%s=%g", p.Name, tr.Params[p.Name]))
		}
		result := fmt.Sprintf("%.3e", tr.Value)
		if tr.Err != nil {
			result = "error: " + tr.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(parts, " "), result)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest: %v (%s = %.3e)\n", best.Params, tuneMetric, best.Value)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	script, err := automation.LoadScript(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tRESIDUAL\tMAX RESIDUAL\tDRIFT\tSNAPPED")
	_, err = automation.RunScript(ctx, script, experiment.NewRegistry(), logger, func(sr automation.StepResult) error {
		runID, err := st.Save(sr.Config, sr.Result)
		if err != nil {
			return err
		}
		r := sr.Result
		fmt.Fprintf(w, "%s\t%s\t%.2e\t%.2e\t%.2e\t%d\n",
			sr.Step.Label(), runID, r.Metrics["residual"], r.Metrics["max_residual"], r.EnergyDrift, r.Snapped)
		return nil
	}, experiment.WithMetrics(metrics.Default()...))
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}
