package sim

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/solver"
)

// ContactSource supplies the contact constraints for the next step. It runs
// after gravity is applied and before the solver.
type ContactSource interface {
	Contacts(w *World) []solver.Constraint
}

// ContactSourceFunc adapts a function to ContactSource.
type ContactSourceFunc func(w *World) []solver.Constraint

func (f ContactSourceFunc) Contacts(w *World) []solver.Constraint { return f(w) }

// World owns bodies and joints. The simulator removes joints that become
// invalid.
type World struct {
	Bodies   []*dynamo.Body
	Joints   []joints.Joint
	Gravity  mgl64.Vec3
	Contacts ContactSource
}

// Body returns the first body with the given name, or nil.
func (w *World) Body(name string) *dynamo.Body {
	for _, b := range w.Bodies {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// KineticEnergy sums the kinetic energy of every live body.
func (w *World) KineticEnergy() float64 {
	e := 0.0
	for _, b := range w.Bodies {
		if b.Valid() {
			e += b.KineticEnergy()
		}
	}
	return e
}

// PotentialEnergy is the gravitational potential relative to the origin.
func (w *World) PotentialEnergy() float64 {
	e := 0.0
	for _, b := range w.Bodies {
		if b.Movable() && b.InvMass > 0 {
			e -= w.Gravity.Dot(b.Position) / b.InvMass
		}
	}
	return e
}

// Residual is the largest absolute atom error over the live joints.
func (w *World) Residual() float64 {
	r := 0.0
	for _, j := range w.Joints {
		if !j.Valid() {
			continue
		}
		for _, a := range atomsOf(j) {
			if a.Error > r {
				r = a.Error
			} else if -a.Error > r {
				r = -a.Error
			}
		}
	}
	return r
}

func atomsOf(j joints.Joint) []solver.Atom {
	if ja, ok := j.(interface{ Atoms() []solver.Atom }); ok {
		return ja.Atoms()
	}
	return nil
}

type Metric interface {
	Name() string
	Observe(s *Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s *Sample)
}

type Config struct {
	Dt       float64
	Duration float64
	// RecordEvery keeps one sample out of every RecordEvery steps. Zero keeps all.
	RecordEvery   int
	ValidateState bool
}

// Sample is the recorded state of the world after one step.
type Sample struct {
	Step          int
	Time          float64
	Residual      float64
	KineticEnergy float64
	Energy        float64
	Joints        int
	Molecules     int
	Bodies        []dynamo.Snapshot
}

type Result struct {
	Samples     []Sample
	Events      []solver.Event
	Metrics     map[string]float64
	StepsTaken  int
	Snapped     int
	EnergyDrift float64
}
