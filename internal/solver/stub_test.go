package solver

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
)

// stub is a constraint holding the x velocities of its bodies equal. Its
// counts can be made to lie.
type stub struct {
	a, b     *dynamo.Body
	kind     Kind
	override *Block

	molecules int
	produce   int
	positions int
	emit      []EventKind

	calls map[string]int
}

func newStub(a, b *dynamo.Body) *stub {
	return &stub{a: a, b: b, kind: KindLinearAxis, molecules: 1, produce: 1, calls: map[string]int{}}
}

func (s *stub) Kind() Kind { return s.kind }
func (s *stub) Bodies() (a, b *dynamo.Body) { return s.a, s.b }
func (s *stub) Override() *Block { return s.override }
func (s *stub) AtomCount() int { return s.molecules }
func (s *stub) UpdateAtoms() { s.calls["update"]++ }
func (s *stub) MoleculeCount() int { return s.molecules }
func (s *stub) PositionMoleculeCount() int { return s.positions }
func (s *stub) BatchEvents(sink EventSink) {
	s.calls["events"]++
	for _, k := range s.emit {
		sink.Emit(Event{Kind: k})
	}
}

func (s *stub) ComputeMolecules(w *MoleculeWalker, p *StepParams) {
	s.calls["compute"]++
	for i := 0; i < s.produce; i++ {
		m := w.Next()
		m.Reset(i)
		m.Jacobian = LinearRow(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{}, mgl64.Vec3{})
		ComputeMass(s.a, s.b, m)
	}
}

func (s *stub) walk(name string, w *MoleculeWalker, fn func(m *Molecule)) {
	s.calls[name]++
	for i := 0; i < s.molecules; i++ {
		fn(w.Next())
	}
}

func (s *stub) WarmStart(w *MoleculeWalker) {
	s.walk("warm", w, func(m *Molecule) { WarmStartFragment(s.a, s.b, m) })
}

func (s *stub) Solve(w *MoleculeWalker) {
	s.walk("solve", w, func(m *Molecule) { SolveFragment(s.a, s.b, m) })
}

func (s *stub) Commit(w *MoleculeWalker) { s.walk("commit", w, func(*Molecule) {}) }

func (s *stub) ComputePositionMolecules(w *MoleculeWalker, p *StepParams) {
	s.calls["position"]++
	for i := 0; i < s.positions; i++ {
		m := w.Next()
		m.Reset(i)
	}
}

func bodies(n int) []*dynamo.Body {
	out := make([]*dynamo.Body, n)
	for i := range out {
		out[i] = dynamo.NewBody("b", mgl64.Vec3{float64(i), 0, 0}, 1, mgl64.Vec3{0.5, 0.5, 0.5})
	}
	return out
}
