package solver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/jointsim/internal/dynamo"
)

const (
	tracerName = "github.com/san-kum/jointsim/internal/solver"

	// Constraints per parallel chunk. Smaller phases run inline.
	parallelChunk = 16
)

// Report summarizes one step.
type Report struct {
	Constraints         int
	Active              int
	Phases              int
	Molecules           int
	PositionConstraints int
	VelocityIterations  int
	PositionIterations  int
	// Inert holds constraints that touched a destroyed body. The owner is
	// expected to remove them before the next step.
	Inert    []Constraint
	Events   []Event
	Stages   [BatchEvents + 1]time.Duration
	Duration time.Duration
}

// Recorder observes completed steps.
type Recorder interface {
	ObserveStep(r *Report)
}

// Option configures a Solver.
type Option func(*Solver)

func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Solver) { s.recorder = r }
}

// WithStageHook installs a callback invoked on every state transition.
func WithStageHook(fn func(State)) Option {
	return func(s *Solver) { s.hook = fn }
}

func WithListener(l EventListener) Option {
	return func(s *Solver) { s.listeners = append(s.listeners, l) }
}

// WithWorkers overrides Config.Workers. One runs every stage inline.
func WithWorkers(n int) Option {
	return func(s *Solver) { s.workers = n }
}

// Solver runs the constraint pipeline. A Solver is safe for use by one step at a
// time; concurrent Step calls are serialized.
type Solver struct {
	cfg       *Config
	logger    *slog.Logger
	recorder  Recorder
	hook      func(State)
	listeners []EventListener
	workers   int
	tracer    trace.Tracer

	mu         sync.Mutex
	state      State
	stageStart time.Time

	live    []Constraint
	counts  []int
	offsets []int
	walkers []MoleculeWalker
}

// New creates a solver. A nil cfg uses DefaultConfig.
func New(cfg *Config, opts ...Option) *Solver {
	s := &Solver{
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig replaces the configuration used from the next step on.
func (s *Solver) SetConfig(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	cfg.Sanitize(s.logger)

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Config returns a copy of the active configuration.
func (s *Solver) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// State returns the current pipeline state. It is Idle between steps.
func (s *Solver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Solver) workerCount() int {
	if s.workers > 0 {
		return s.workers
	}
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return dynamo.DefaultWorkers()
}

// Step solves joints and contacts for one timestep of length dt, mutating body
// velocities and, for post-stabilized constraints, body transforms. The context
// only carries trace information; a step always runs to completion.
func (s *Solver) Step(ctx context.Context, dt float64, joints, contacts []Constraint) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, span := s.tracer.Start(ctx, "solver.Step", trace.WithAttributes(
		attribute.Int("joints", len(joints)),
		attribute.Int("contacts", len(contacts)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.state = Idle
			panic(r)
		}
	}()

	start := time.Now()
	s.stageStart = start
	cfg := s.cfg
	params := &StepParams{Dt: dt, Config: cfg, Logger: s.logger}
	if cfg.WarmStart {
		params.WarmStartFactor = cfg.WarmStartFactor
	}
	report := Report{Constraints: len(joints) + len(contacts)}

	s.enter(UpdateData, span, &report)
	phases, arena := s.updateData(joints, contacts, params, &report)
	defer putArena(arena)

	s.enter(WarmStart, span, &report)
	if cfg.WarmStart {
		s.runPhases(phases, func(i int) {
			w := &s.walkers[i]
			w.Rewind()
			s.call(i, WarmStart, func() { s.live[i].WarmStart(w) })
			s.check(i, WarmStart, w)
		})
	}

	s.enter(SolveVelocities, span, &report)
	for it := 0; it < cfg.VelocityIterations; it++ {
		s.runPhases(phases, func(i int) {
			w := &s.walkers[i]
			w.Rewind()
			s.call(i, SolveVelocities, func() { s.live[i].Solve(w) })
			s.check(i, SolveVelocities, w)
		})
	}
	report.VelocityIterations = cfg.VelocityIterations

	s.enter(Commit, span, &report)
	s.forAll(len(s.live), func(i int) {
		w := &s.walkers[i]
		w.Rewind()
		s.call(i, Commit, func() { s.live[i].Commit(w) })
		s.check(i, Commit, w)
	})

	s.enter(SolvePositions, span, &report)
	s.solvePositions(phases, params, &report)

	s.enter(BatchEvents, span, &report)
	s.batchEvents(&report)

	s.enter(Idle, span, &report)
	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("phases", report.Phases),
		attribute.Int("molecules", report.Molecules),
		attribute.Int("events", len(report.Events)),
	)

	for i := range s.live {
		s.live[i] = nil
	}
	s.live = s.live[:0]

	if s.recorder != nil {
		s.recorder.ObserveStep(&report)
	}
	return report
}

func (s *Solver) enter(next State, span trace.Span, report *Report) {
	if next != s.state.next() {
		panic(&StageError{From: s.state, To: next})
	}
	now := time.Now()
	report.Stages[s.state] += now.Sub(s.stageStart)
	s.stageStart = now
	s.state = next
	span.AddEvent(next.String())
	if s.hook != nil {
		s.hook(next)
	}
}

func (s *Solver) updateData(joints, contacts []Constraint, params *StepParams, report *Report) (Phases, *Arena) {
	s.live = s.live[:0]
	for _, list := range [][]Constraint{joints, contacts} {
		for _, c := range list {
			if Inert(c) {
				report.Inert = append(report.Inert, c)
				s.logger.Debug("constraint touches a destroyed body, skipping", "kind", c.Kind())
				continue
			}
			s.live = append(s.live, c)
		}
	}
	n := len(s.live)
	report.Active = n

	s.counts = resize(s.counts, n)
	s.offsets = resize(s.offsets, n)
	if cap(s.walkers) < n {
		s.walkers = make([]MoleculeWalker, n)
	}
	s.walkers = s.walkers[:n]

	phases := SplitPhases(s.live)
	report.Phases = phases.Len()

	s.forAll(n, func(i int) { s.live[i].UpdateAtoms() })

	total := 0
	for i, c := range s.live {
		s.counts[i] = c.MoleculeCount()
		s.offsets[i] = total
		total += s.counts[i]
	}
	report.Molecules = total

	arena := getArena(total)
	s.forAll(n, func(i int) {
		s.walkers[i] = arena.Walker(s.offsets[i], s.counts[i])
		w := &s.walkers[i]
		s.call(i, UpdateData, func() { s.live[i].ComputeMolecules(w, params) })
		s.check(i, UpdateData, w)
	})
	return phases, arena
}

func (s *Solver) solvePositions(phases Phases, params *StepParams, report *Report) {
	cfg := params.Config
	if cfg.PositionIterations == 0 || len(s.live) == 0 {
		return
	}
	eligible := make([]bool, len(s.live))
	for i, c := range s.live {
		eligible[i] = cfg.ShouldSolvePosition(c)
	}
	filtered := phases.Filter(func(i int) bool { return eligible[i] })
	if filtered.Len() == 0 {
		return
	}

	// Position molecules never outnumber max(atoms, velocity molecules).
	total := 0
	for i, c := range s.live {
		if !eligible[i] {
			continue
		}
		report.PositionConstraints++
		s.counts[i] = max(c.AtomCount(), s.counts[i])
		s.offsets[i] = total
		total += s.counts[i]
	}
	arena := getArena(total)
	defer putArena(arena)

	for it := 0; it < cfg.PositionIterations; it++ {
		s.runPhases(filtered, func(i int) {
			c := s.live[i]
			c.UpdateAtoms()
			n := c.PositionMoleculeCount()
			if n > s.counts[i] {
				panic(&CountMismatchError{Kind: c.Kind(), Stage: SolvePositions, Expected: s.counts[i], Got: n})
			}
			s.walkers[i] = arena.Walker(s.offsets[i], n)
			w := &s.walkers[i]
			s.call(i, SolvePositions, func() { c.ComputePositionMolecules(w, params) })
			s.check(i, SolvePositions, w)

			a, b := c.Bodies()
			mols := w.Molecules()
			for k := range mols {
				SolvePositionFragment(a, b, &mols[k])
			}
		})
	}
	report.PositionIterations = cfg.PositionIterations
}

func (s *Solver) batchEvents(report *Report) {
	batch := &eventBatch{}
	for i, c := range s.live {
		batch.current = c
		batch.index = i
		c.BatchEvents(batch)
	}
	report.Events = batch.events
	for _, e := range batch.events {
		for _, l := range s.listeners {
			l.OnEvent(e)
		}
	}
}

// runPhases runs fn for every constraint, phase by phase. Constraints inside one
// phase share no movable body and run concurrently.
func (s *Solver) runPhases(phases Phases, fn func(i int)) {
	workers := s.workerCount()
	for _, list := range phases.Lists {
		dynamo.ParallelFor(workers, len(list), parallelChunk, func(start, end int) {
			for _, i := range list[start:end] {
				fn(i)
			}
		})
	}
}

// forAll runs fn for every index. fn must only touch constraint-owned state.
func (s *Solver) forAll(n int, fn func(i int)) {
	dynamo.ParallelFor(s.workerCount(), n, parallelChunk, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// call runs fn and annotates a count-mismatch panic raised by the walker.
func (s *Solver) call(i int, stage State, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CountMismatchError); ok {
				ce.Constraint = i
				ce.Kind = s.live[i].Kind()
				ce.Stage = stage
			}
			panic(r)
		}
	}()
	fn()
}

func (s *Solver) check(i int, stage State, w *MoleculeWalker) {
	if w.Used() != w.Cap() {
		panic(&CountMismatchError{
			Constraint: i,
			Kind:       s.live[i].Kind(),
			Stage:      stage,
			Expected:   w.Cap(),
			Got:        w.Used(),
		})
	}
}

func resize(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}
