package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/solver"
)

const dt = 1.0 / 60

var gravity = mgl64.Vec3{0, -9.81, 0}

func box(name string, pos mgl64.Vec3) *dynamo.Body {
	return dynamo.NewBody(name, pos, 1, mgl64.Vec3{0.1, 0.1, 0.1})
}

func pendulum() *World {
	bob := box("bob", mgl64.Vec3{1, 0, 0})
	return &World{
		Bodies:  []*dynamo.Body{bob},
		Joints:  []joints.Joint{joints.NewRevolute(nil, bob, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})},
		Gravity: gravity,
	}
}

func TestSimulatorFreeFall(t *testing.T) {
	b := box("b", mgl64.Vec3{})
	sim := New(&World{Bodies: []*dynamo.Body{b}, Gravity: gravity}, nil)

	result, err := sim.Run(context.Background(), Config{Dt: dt, Duration: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Samples) != 61 {
		t.Errorf("expected 61 samples, got %d", len(result.Samples))
	}
	if result.StepsTaken != 60 {
		t.Errorf("expected 60 steps, got %d", result.StepsTaken)
	}
	if math.Abs(b.LinearVelocity[1]+9.81) > 1e-9 {
		t.Errorf("expected vy = -9.81, got %f", b.LinearVelocity[1])
	}
	want := -9.81 * dt * dt * 60 * 61 / 2
	if math.Abs(b.Position[1]-want) > 1e-9 {
		t.Errorf("expected y = %f, got %f", want, b.Position[1])
	}
}

func TestSimulatorPendulumKeepsLength(t *testing.T) {
	w := pendulum()
	sim := New(w, nil)

	result, err := sim.Run(context.Background(), Config{Dt: dt, Duration: 2, ValidateState: true})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	bob := w.Body("bob")
	if l := bob.Position.Len(); math.Abs(l-1) > 0.05 {
		t.Errorf("pendulum length drifted to %f", l)
	}
	if bob.Position[1] >= 0 {
		t.Errorf("pendulum should have swung down, y = %f", bob.Position[1])
	}
	for _, s := range result.Samples {
		if s.Residual > 0.05 {
			t.Fatalf("residual %f at t=%.3f", s.Residual, s.Time)
		}
	}
}

func TestSimulatorRecordEvery(t *testing.T) {
	sim := New(pendulum(), nil)
	result, err := sim.Run(context.Background(), Config{Dt: dt, Duration: 1, RecordEvery: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Samples) != 7 {
		t.Errorf("expected 7 samples, got %d", len(result.Samples))
	}
	if last := result.Samples[len(result.Samples)-1]; last.Step != 60 {
		t.Errorf("expected last sample at step 60, got %d", last.Step)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(pendulum(), nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"negative record interval", Config{Dt: 0.1, Duration: 1, RecordEvery: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.cfg)
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSimulatorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(pendulum(), nil).Run(ctx, Config{Dt: dt, Duration: 1})
	if !errors.Is(err, dynamo.ErrContextCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	var se *dynamo.SimulationError
	if !errors.As(err, &se) || se.Step != 0 {
		t.Errorf("expected SimulationError at step 0, got %v", err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("expected no steps, got %d", result.StepsTaken)
	}
}

func TestSimulatorInvalidState(t *testing.T) {
	w := pendulum()
	w.Bodies[0].LinearVelocity = mgl64.Vec3{math.NaN(), 0, 0}

	_, err := New(w, nil).Run(context.Background(), Config{Dt: dt, Duration: 1, ValidateState: true})
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSimulatorPrunesInvalidJoints(t *testing.T) {
	a := box("a", mgl64.Vec3{})
	b := box("b", mgl64.Vec3{1, 0, 0})
	c := box("c", mgl64.Vec3{2, 0, 0})
	d := box("d", mgl64.Vec3{3, 0, 0})
	keep := joints.NewLinearAxis(a, d, a.Position, d.Position, mgl64.Vec3{1, 0, 0})
	keep.Target = 3
	lost := joints.NewLinearAxis(b, c, b.Position, c.Position, mgl64.Vec3{1, 0, 0})
	brittle := joints.NewLinearAxis(a, c, a.Position, c.Position, mgl64.Vec3{1, 0, 0})
	brittle.MaxImpulse = 1e-6
	brittle.AutoSnaps = true
	c.LinearVelocity = mgl64.Vec3{1, 0, 0}

	w := &World{Bodies: []*dynamo.Body{a, b, c, d}, Joints: []joints.Joint{keep, lost, brittle}}
	sim := New(w, solver.New(nil, solver.WithWorkers(1)))

	rep := sim.Step(context.Background(), dt)
	if len(rep.Events) != 1 || rep.Events[0].Kind != solver.EventSnapped {
		t.Fatalf("expected one snap event, got %+v", rep.Events)
	}
	b.Destroy()
	sim.Step(context.Background(), dt)

	if len(w.Joints) != 1 || w.Joints[0] != joints.Joint(keep) {
		t.Errorf("expected only the intact joint to survive, got %d joints", len(w.Joints))
	}
}

type countingSource struct{ calls int }

func (c *countingSource) Contacts(*World) []solver.Constraint {
	c.calls++
	return nil
}

func TestSimulatorRefreshesContactsEveryStep(t *testing.T) {
	src := &countingSource{}
	w := pendulum()
	w.Contacts = src

	if _, err := New(w, nil).Run(context.Background(), Config{Dt: dt, Duration: 0.5}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if src.calls != 30 {
		t.Errorf("expected 30 contact refreshes, got %d", src.calls)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(s *Sample) {
	t.count++
	t.sum += s.KineticEnergy
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(pendulum(), nil)

	metric := &testMetric{}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), Config{Dt: dt, Duration: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 60 {
		t.Errorf("expected 60 observations, got %d", metric.count)
	}
}

func TestRunWithCallbackStops(t *testing.T) {
	sim := New(pendulum(), nil)
	seen := 0
	err := sim.RunWithCallback(context.Background(), Config{Dt: dt, Duration: 10}, func(s *Sample) bool {
		seen++
		if len(s.Bodies) != 1 {
			t.Fatalf("expected one body snapshot, got %d", len(s.Bodies))
		}
		return seen < 5
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if seen != 5 {
		t.Errorf("expected 5 callbacks, got %d", seen)
	}
	if math.Abs(sim.Time()-5*dt) > 1e-12 {
		t.Errorf("expected time %f, got %f", 5*dt, sim.Time())
	}
}

func TestEnsemble(t *testing.T) {
	build := func(seed int64) (*World, error) {
		w := pendulum()
		w.Bodies[0].LinearVelocity = mgl64.Vec3{0, float64(seed), 0}
		return w, nil
	}
	results, err := NewEnsemble(build, nil, 4, 0).WithWorkers(2).Run(context.Background(), Config{Dt: dt, Duration: 0.5})
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.StepsTaken != 30 {
			t.Errorf("run %d: expected 30 steps, got %d", i, r.StepsTaken)
		}
	}

	boom := errors.New("boom")
	_, err = NewEnsemble(func(int64) (*World, error) { return nil, boom }, nil, 2, 0).Run(context.Background(), Config{Dt: dt, Duration: 0.5})
	if !errors.Is(err, boom) {
		t.Errorf("expected build error, got %v", err)
	}
}
