package metrics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/sim"
	"github.com/san-kum/jointsim/internal/solver"
)

func TestEnergyAverage(t *testing.T) {
	m := NewEnergy()
	m.Observe(&sim.Sample{Energy: 2})
	m.Observe(&sim.Sample{Energy: 4})

	if got := m.Value(); math.Abs(got-3) > 1e-12 {
		t.Errorf("expected energy 3, got %f", got)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift()
	for _, e := range []float64{10, 9, 10.5, 8} {
		m.Observe(&sim.Sample{Energy: e})
	}
	if got := m.Value(); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("expected drift 0.2, got %f", got)
	}
}

func TestResidual(t *testing.T) {
	mean, worst := NewResidual(), NewMaxResidual()
	for _, r := range []float64{0.1, 0.3, 0.2} {
		mean.Observe(&sim.Sample{Residual: r})
		worst.Observe(&sim.Sample{Residual: r})
	}
	if math.Abs(mean.Value()-0.2) > 1e-12 {
		t.Errorf("expected mean 0.2, got %f", mean.Value())
	}
	if worst.Value() != 0.3 {
		t.Errorf("expected max 0.3, got %f", worst.Value())
	}
}

func TestStability(t *testing.T) {
	tests := []struct {
		name    string
		samples []sim.Sample
		want    float64
	}{
		{"no samples", nil, 1},
		{"all stable", []sim.Sample{{Residual: 0.01}, {Residual: 0.02}}, 1},
		{"half over threshold", []sim.Sample{{Residual: 0.01}, {Residual: 0.5}}, 0.5},
		{"nan energy", []sim.Sample{{Energy: math.NaN()}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStability(0.05)
			for i := range tt.samples {
				m.Observe(&tt.samples[i])
			}
			if got := m.Value(); got != tt.want {
				t.Errorf("Value() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultMetricsOnPendulum(t *testing.T) {
	bob := dynamo.NewBody("bob", mgl64.Vec3{1, 0, 0}, 1, mgl64.Vec3{0.1, 0.1, 0.1})
	w := &sim.World{
		Bodies:  []*dynamo.Body{bob},
		Joints:  []joints.Joint{joints.NewRevolute(nil, bob, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})},
		Gravity: mgl64.Vec3{0, -9.81, 0},
	}
	s := sim.New(w, nil)
	for _, m := range Default() {
		s.AddMetric(m)
	}

	result, err := s.Run(context.Background(), sim.Config{Dt: 1.0 / 60, Duration: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, name := range []string{"energy", "energy_drift", "residual", "max_residual", "stability"} {
		if _, ok := result.Metrics[name]; !ok {
			t.Errorf("metric %s missing", name)
		}
	}
	if result.Metrics["stability"] != 1 {
		t.Errorf("pendulum should stay stable, got %f", result.Metrics["stability"])
	}
}

func TestSolverCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewSolverCollector(reg)

	rep := &solver.Report{
		Active:    3,
		Molecules: 12,
		Phases:    2,
		Inert:     make([]solver.Constraint, 1),
		Events: []solver.Event{
			{Kind: solver.EventSnapped},
			{Kind: solver.EventSnapped},
			{Kind: solver.EventLowerLimitReached},
		},
		Duration: time.Millisecond,
	}
	c.ObserveStep(rep)
	c.ObserveStep(&solver.Report{Active: 2})

	if got := testutil.ToFloat64(c.steps); got != 2 {
		t.Errorf("expected 2 steps, got %f", got)
	}
	if got := testutil.ToFloat64(c.constraints); got != 2 {
		t.Errorf("expected gauge to hold the last step, got %f", got)
	}
	if got := testutil.ToFloat64(c.inert); got != 1 {
		t.Errorf("expected 1 inert constraint, got %f", got)
	}
	if got := testutil.ToFloat64(c.events.WithLabelValues("snapped")); got != 2 {
		t.Errorf("expected 2 snapped events, got %f", got)
	}
	if n := testutil.CollectAndCount(c.stageDuration); n != 6 {
		t.Errorf("expected 6 stage series, got %d", n)
	}
}

func TestSolverCollectorAsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewSolverCollector(reg)
	s := solver.New(nil, solver.WithRecorder(c))

	b := dynamo.NewBody("b", mgl64.Vec3{}, 1, mgl64.Vec3{0.5, 0.5, 0.5})
	s.Step(context.Background(), 1.0/60, []solver.Constraint{joints.NewGrab(b, mgl64.Vec3{})}, nil)

	if got := testutil.ToFloat64(c.molecules); got != 6 {
		t.Errorf("expected 6 molecules, got %f", got)
	}
}
