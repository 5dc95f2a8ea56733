package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/solver"
)

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// Simulator owns the step loop around a solver: gravity, contacts, joint
// pruning, the solve and integration.
type Simulator struct {
	world     *World
	solver    *solver.Solver
	logger    *slog.Logger
	metrics   []Metric
	observers []Observer
	pool      *SnapshotPool

	time  float64
	steps int
}

// New creates a simulator for w. A nil solver gets one with the default config.
func New(w *World, s *solver.Solver, opts ...Option) *Simulator {
	if s == nil {
		s = solver.New(nil)
	}
	sim := &Simulator{
		world:     w,
		solver:    s,
		logger:    slog.New(slog.DiscardHandler),
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		pool:      NewSnapshotPool(len(w.Bodies)),
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) World() *World          { return s.world }
func (s *Simulator) Solver() *solver.Solver { return s.solver }
func (s *Simulator) Time() float64          { return s.time }

// Step advances the world by dt.
func (s *Simulator) Step(ctx context.Context, dt float64) solver.Report {
	w := s.world
	for _, b := range w.Bodies {
		if b.Movable() {
			b.LinearVelocity = b.LinearVelocity.Add(w.Gravity.Mul(dt))
		}
	}

	var contacts []solver.Constraint
	if w.Contacts != nil {
		contacts = w.Contacts.Contacts(w)
	}

	s.prune()
	cs := make([]solver.Constraint, len(w.Joints))
	for i, j := range w.Joints {
		cs[i] = j
	}
	rep := s.solver.Step(ctx, dt, cs, contacts)

	for _, b := range w.Bodies {
		b.Integrate(dt)
	}
	s.time += dt
	s.steps++
	return rep
}

// prune drops joints that snapped or lost a body.
func (s *Simulator) prune() {
	kept := s.world.Joints[:0]
	for _, j := range s.world.Joints {
		if j.Valid() {
			kept = append(kept, j)
			continue
		}
		if j.Snapped() {
			s.logger.Warn("joint snapped, removing", "kind", j.Kind(), "time", s.time)
		} else {
			s.logger.Info("joint lost a body, removing", "kind", j.Kind(), "time", s.time)
		}
	}
	for i := len(kept); i < len(s.world.Joints); i++ {
		s.world.Joints[i] = nil
	}
	s.world.Joints = kept
}

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	every := max(cfg.RecordEvery, 1)
	result := &Result{
		Samples: make([]Sample, 0, steps/every+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	initialEnergy := s.energy()
	result.Samples = append(result.Samples, s.sample(solver.Report{}, s.snapshots()))

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, s.canceled(ctx)
		default:
		}

		rep := s.Step(ctx, cfg.Dt)
		result.StepsTaken++
		result.Events = append(result.Events, rep.Events...)
		for _, e := range rep.Events {
			if e.Kind == solver.EventSnapped {
				result.Snapped++
			}
		}

		if cfg.ValidateState {
			if err := s.validate(); err != nil {
				return result, err
			}
		}

		smp := s.sample(rep, s.snapshots())
		for _, m := range s.metrics {
			m.Observe(&smp)
		}
		for _, obs := range s.observers {
			obs.OnStep(&smp)
		}
		if (i+1)%every == 0 || i == steps-1 {
			result.Samples = append(result.Samples, smp)
		}
	}

	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(s.energy()-initialEnergy) / math.Abs(initialEnergy)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// RunWithCallback steps until the duration elapses or callback returns false.
// The sample passed to callback is only valid during the call.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(*Sample) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	end := s.time + cfg.Duration
	for s.time < end-cfg.Dt/2 {
		select {
		case <-ctx.Done():
			return s.canceled(ctx)
		default:
		}

		rep := s.Step(ctx, cfg.Dt)
		if cfg.ValidateState {
			if err := s.validate(); err != nil {
				return err
			}
		}

		smp := s.sample(rep, s.pool.Capture(s.world.Bodies))
		ok := callback(&smp)
		s.pool.Put(smp.Bodies)
		if !ok {
			return nil
		}
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 || math.IsNaN(cfg.Dt) {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 || math.IsNaN(cfg.Duration) {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Duration)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("%w: record interval must not be negative, got %d", dynamo.ErrInvalidConfig, cfg.RecordEvery)
	}
	return nil
}

func (s *Simulator) validate() error {
	for _, b := range s.world.Bodies {
		if !b.IsValid() {
			return &dynamo.SimulationError{
				Step:    s.steps,
				Time:    s.time,
				Wrapped: fmt.Errorf("%w: body %q", dynamo.ErrInvalidState, b.Name),
			}
		}
	}
	return nil
}

func (s *Simulator) canceled(ctx context.Context) error {
	return &dynamo.SimulationError{
		Step:    s.steps,
		Time:    s.time,
		Wrapped: fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()),
	}
}

func (s *Simulator) energy() float64 {
	return s.world.KineticEnergy() + s.world.PotentialEnergy()
}

func (s *Simulator) snapshots() []dynamo.Snapshot {
	out := make([]dynamo.Snapshot, len(s.world.Bodies))
	for i, b := range s.world.Bodies {
		out[i] = b.Snapshot()
	}
	return out
}

func (s *Simulator) sample(rep solver.Report, bodies []dynamo.Snapshot) Sample {
	ke := s.world.KineticEnergy()
	return Sample{
		Step:          s.steps,
		Time:          s.time,
		Residual:      s.world.Residual(),
		KineticEnergy: ke,
		Energy:        ke + s.world.PotentialEnergy(),
		Joints:        len(s.world.Joints),
		Molecules:     rep.Molecules,
		Bodies:        bodies,
	}
}

// AddJoint appends a joint to the world.
func (s *Simulator) AddJoint(j joints.Joint) { s.world.Joints = append(s.world.Joints, j) }
