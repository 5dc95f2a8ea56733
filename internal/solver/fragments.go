package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
)

// Rows with an effective inverse mass below this are treated as degenerate.
const massEpsilon = 1e-12

// ComputeMass fills the inverse-mass terms and effective mass 1/(J M^-1 J^T).
// Static and world endpoints contribute nothing and are never written.
func ComputeMass(a, b *dynamo.Body, m *Molecule) {
	m.InvMassA, m.AngularDeltaA = 0, mgl64.Vec3{}
	m.InvMassB, m.AngularDeltaB = 0, mgl64.Vec3{}
	if a.Movable() {
		m.InvMassA = a.InvMass
		m.AngularDeltaA = a.InvInertiaWorld().Mul3x1(m.AngularA)
	}
	if b.Movable() {
		m.InvMassB = b.InvMass
		m.AngularDeltaB = b.InvInertiaWorld().Mul3x1(m.AngularB)
	}

	k := m.InvMassA*m.LinearA.Dot(m.LinearA) + m.AngularA.Dot(m.AngularDeltaA) +
		m.InvMassB*m.LinearB.Dot(m.LinearB) + m.AngularB.Dot(m.AngularDeltaB)
	if k < massEpsilon || math.IsNaN(k) || math.IsInf(k, 0) {
		m.Mass = 0
		return
	}
	m.Mass = 1 / k
}

// SoftenMolecule turns a computed row into a spring with the given frequency (Hz)
// and damping ratio. The positional error is folded into the bias, replacing
// any baumgarte term. Frequencies <= 0 leave the row rigid.
func SoftenMolecule(m *Molecule, frequency, damping, dt float64) {
	if frequency <= 0 || m.Mass == 0 || dt <= 0 {
		return
	}
	omega := 2 * math.Pi * frequency
	k := m.Mass * omega * omega
	c := 2 * m.Mass * damping * omega
	denom := c + dt*k
	if denom <= 0 {
		return
	}
	gamma := 1 / (dt * denom)
	beta := dt * k / denom

	m.Gamma = gamma
	m.Mass = 1 / (1/m.Mass + gamma)
	m.Bias = m.Error * beta / dt
}

// RelativeVelocity returns J v for the molecule.
func RelativeVelocity(a, b *dynamo.Body, m *Molecule) float64 {
	va, wa := a.Velocities()
	vb, wb := b.Velocities()
	return m.LinearA.Dot(va) + m.AngularA.Dot(wa) + m.LinearB.Dot(vb) + m.AngularB.Dot(wb)
}

// ApplyImpulse applies lambda along the molecule's Jacobian to both endpoints.
func ApplyImpulse(a, b *dynamo.Body, m *Molecule, lambda float64) {
	if a != nil && (m.InvMassA != 0 || m.AngularDeltaA != (mgl64.Vec3{})) {
		a.LinearVelocity = a.LinearVelocity.Add(m.LinearA.Mul(m.InvMassA * lambda))
		a.AngularVelocity = a.AngularVelocity.Add(m.AngularDeltaA.Mul(lambda))
	}
	if b != nil && (m.InvMassB != 0 || m.AngularDeltaB != (mgl64.Vec3{})) {
		b.LinearVelocity = b.LinearVelocity.Add(m.LinearB.Mul(m.InvMassB * lambda))
		b.AngularVelocity = b.AngularVelocity.Add(m.AngularDeltaB.Mul(lambda))
	}
}

// ApplyDisplacement moves both endpoints along the molecule's Jacobian without
// touching velocities.
func ApplyDisplacement(a, b *dynamo.Body, m *Molecule, lambda float64) {
	if a != nil && (m.InvMassA != 0 || m.AngularDeltaA != (mgl64.Vec3{})) {
		a.Position = a.Position.Add(m.LinearA.Mul(m.InvMassA * lambda))
		a.Rotate(m.AngularDeltaA.Mul(lambda))
	}
	if b != nil && (m.InvMassB != 0 || m.AngularDeltaB != (mgl64.Vec3{})) {
		b.Position = b.Position.Add(m.LinearB.Mul(m.InvMassB * lambda))
		b.Rotate(m.AngularDeltaB.Mul(lambda))
	}
}

// WarmStartFragment applies the molecule's starting impulse, which
// ComputeMolecules seeded from the atom scaled by the warm-start factor.
func WarmStartFragment(a, b *dynamo.Body, m *Molecule) {
	if m.Impulse == 0 || m.Mass == 0 {
		return
	}
	ApplyImpulse(a, b, m, m.Impulse)
}

// SolveFragment runs one sequential-impulse iteration on a molecule and returns
// the impulse delta that was applied.
func SolveFragment(a, b *dynamo.Body, m *Molecule) float64 {
	if m.Mass == 0 {
		return 0
	}
	jv := RelativeVelocity(a, b, m)
	lambda := -(jv + m.Bias + m.Gamma*m.Impulse) * m.Mass

	old := m.Impulse
	m.Impulse = clamp(old+lambda, m.MinImpulse, m.MaxImpulse)
	delta := m.Impulse - old
	ApplyImpulse(a, b, m, delta)
	return delta
}

// CommitFragment stores the accumulated impulse and error back on the atom.
func CommitFragment(m *Molecule, atom *Atom) {
	atom.Impulse = m.Impulse
	atom.Error = m.Error
}

// SolvePositionFragment removes up to ErrorCorrection of the molecule's error
// by displacing the endpoints. One-sided rows only push.
func SolvePositionFragment(a, b *dynamo.Body, m *Molecule) float64 {
	if m.Mass == 0 {
		return 0
	}
	c := clamp(m.Error, -m.ErrorCorrection, m.ErrorCorrection)
	lambda := -c * m.Mass
	if m.MinImpulse >= 0 && lambda < 0 {
		lambda = 0
	}
	if m.MaxImpulse <= 0 && lambda > 0 {
		lambda = 0
	}
	ApplyDisplacement(a, b, m, lambda)
	return lambda
}
