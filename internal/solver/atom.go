package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AtomFilter declares which physical axis an atom governs. It selects the
// baumgarte factor and the position-pass error cap.
type AtomFilter int

const (
	LinearAxis AtomFilter = iota
	AngularAxis
)

func (f AtomFilter) String() string {
	switch f {
	case LinearAxis:
		return "linear"
	case AngularAxis:
		return "angular"
	default:
		return "unknown"
	}
}

// Atom is one scalar constraint row. It is rebuilt every step from body state
// except for Impulse, which carries the last committed value for warm starting.
type Atom struct {
	Value      float64
	Error      float64
	Impulse    float64
	MinImpulse float64
	MaxImpulse float64
	Bias       float64
}

// Unbounded resets the impulse bounds to (-Inf, +Inf).
func (a *Atom) Unbounded() {
	a.MinImpulse = math.Inf(-1)
	a.MaxImpulse = math.Inf(1)
}

// Jacobian is one constraint row for the two endpoints.
type Jacobian struct {
	LinearA  mgl64.Vec3
	AngularA mgl64.Vec3
	LinearB  mgl64.Vec3
	AngularB mgl64.Vec3
}

// Negate flips the sign of every component.
func (j Jacobian) Negate() Jacobian {
	return Jacobian{
		LinearA:  j.LinearA.Mul(-1),
		AngularA: j.AngularA.Mul(-1),
		LinearB:  j.LinearB.Mul(-1),
		AngularB: j.AngularB.Mul(-1),
	}
}

// LinearRow builds the Jacobian of u . (pB - pA) where the anchors sit at rA and
// rB from each body centre.
func LinearRow(u, rA, rB mgl64.Vec3) Jacobian {
	return Jacobian{
		LinearA:  u.Mul(-1),
		AngularA: rA.Cross(u).Mul(-1),
		LinearB:  u,
		AngularB: rB.Cross(u),
	}
}

// AngularRow builds the Jacobian of the relative rotation about u.
func AngularRow(u mgl64.Vec3) Jacobian {
	return Jacobian{
		AngularA: u.Mul(-1),
		AngularB: u,
	}
}

// NoAtom marks a molecule that does not write back to an atom, such as a motor.
const NoAtom = -1

// Molecule is the solve-ready form of one atom. Molecules live in the step arena
// and are never allocated individually.
type Molecule struct {
	Jacobian

	// I^-1 J for each endpoint, zero for static or world endpoints.
	AngularDeltaA mgl64.Vec3
	AngularDeltaB mgl64.Vec3
	InvMassA      float64
	InvMassB      float64

	Mass       float64
	Impulse    float64
	MinImpulse float64
	MaxImpulse float64
	Bias       float64
	Gamma      float64

	Error           float64
	ErrorCorrection float64

	Atom int
}

// Reset clears the molecule so a constraint can fill it from scratch.
func (m *Molecule) Reset(atom int) {
	*m = Molecule{
		MinImpulse: math.Inf(-1),
		MaxImpulse: math.Inf(1),
		Atom:       atom,
	}
}

// Inert reports whether the row contributes nothing to the solve.
func (m *Molecule) Inert() bool { return m.Mass == 0 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
