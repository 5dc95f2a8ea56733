package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/sim"
	"github.com/san-kum/jointsim/internal/solver"
)

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder forwards solver step reports, e.g. to a metrics collector.
func WithRecorder(r solver.Recorder) Option {
	return func(e *Experiment) { e.recorder = r }
}

func WithMetrics(ms ...sim.Metric) Option {
	return func(e *Experiment) { e.metrics = append(e.metrics, ms...) }
}

func WithObserver(o sim.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

// Experiment is one configured scenario ready to run.
type Experiment struct {
	cfg       *config.Config
	scenario  Scenario
	simulator *sim.Simulator
	logger    *slog.Logger
	recorder  solver.Recorder
	metrics   []sim.Metric
	observers []sim.Observer
}

// New builds the scenario named by cfg and a solver configured from it.
func New(reg *Registry, cfg *config.Config, opts ...Option) (*Experiment, error) {
	e := &Experiment{
		cfg:    cfg.Clone(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}

	scenario, err := reg.Get(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	e.scenario = scenario

	solverCfg, err := cfg.ToSolver()
	if err != nil {
		return nil, err
	}
	w, err := scenario.Build(e.cfg)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", scenario.Name, err)
	}

	solverOpts := []solver.Option{
		solver.WithLogger(e.logger),
		solver.WithListener(solver.EventListenerFunc(e.logEvent)),
	}
	if e.recorder != nil {
		solverOpts = append(solverOpts, solver.WithRecorder(e.recorder))
	}
	e.simulator = sim.New(w, solver.New(solverCfg, solverOpts...), sim.WithLogger(e.logger))
	for _, m := range e.metrics {
		e.simulator.AddMetric(m)
	}
	for _, o := range e.observers {
		e.simulator.AddObserver(o)
	}
	return e, nil
}

func (e *Experiment) logEvent(ev solver.Event) {
	e.logger.Info("joint event",
		"event", ev.Kind.String(),
		"kind", ev.Constraint.Kind().String(),
		"atom", ev.Atom,
		"impulse", ev.Impulse,
	)
}

func (e *Experiment) Config() *config.Config { return e.cfg.Clone() }

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{Dt: e.cfg.Dt, Duration: e.cfg.Duration, ValidateState: true}
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	e.logger.Info("running experiment", "scenario", e.scenario.Name, "dt", e.cfg.Dt, "duration", e.cfg.Duration)
	return e.simulator.Run(ctx, e.SimConfig())
}

// Reconfigure swaps the solver settings of a running experiment. Scene values
// only take effect on the next build.
func (e *Experiment) Reconfigure(cfg *config.Config) error {
	solverCfg, err := cfg.ToSolver()
	if err != nil {
		return err
	}
	e.simulator.Solver().SetConfig(solverCfg)
	e.cfg.Solver = cfg.Clone().Solver
	return nil
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
