// Package contact implements the contact constraint built from collision
// manifolds: one non-penetration row and two friction rows per manifold point.
package contact

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

// Point is one manifold point as reported by collision detection.
type Point struct {
	WorldPoint  mgl64.Vec3
	Penetration float64
	// ID identifies the same feature pair across frames.
	ID uint64
}

type pointState struct {
	id          uint64
	localA      mgl64.Vec3
	localB      mgl64.Vec3
	penetration float64

	normalImpulse   float64
	tangentImpulses [2]float64
}

// Contact constrains two bodies along a world normal pointing from A to B.
type Contact struct {
	a, b *dynamo.Body

	Normal      mgl64.Vec3
	Friction    float64
	Restitution float64

	override *solver.Block
	points   []pointState
}

// New creates a contact between a and b. Either body may be nil.
func New(a, b *dynamo.Body, normal mgl64.Vec3, friction, restitution float64) *Contact {
	n := normal
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	} else {
		n = mgl64.Vec3{0, 1, 0}
	}
	return &Contact{a: a, b: b, Normal: n, Friction: friction, Restitution: restitution}
}

// Update replaces the manifold points. Points whose ID matches a previous point
// keep its accumulated impulses for warm starting.
func (c *Contact) Update(points []Point) {
	prev := c.points
	next := make([]pointState, len(points))
	for i, p := range points {
		half := c.Normal.Mul(p.Penetration / 2)
		next[i] = pointState{
			id:          p.ID,
			localA:      c.a.LocalPoint(p.WorldPoint.Add(half)),
			localB:      c.b.LocalPoint(p.WorldPoint.Sub(half)),
			penetration: p.Penetration,
		}
		for _, old := range prev {
			if old.id == p.ID {
				next[i].normalImpulse = old.normalImpulse
				next[i].tangentImpulses = old.tangentImpulses
				break
			}
		}
	}
	c.points = next
}

// PointCount returns the number of manifold points.
func (c *Contact) PointCount() int { return len(c.points) }

// NormalImpulse returns the committed normal impulse of point i.
func (c *Contact) NormalImpulse(i int) float64 { return c.points[i].normalImpulse }

// Penetration returns the penetration of point i measured at the last update.
func (c *Contact) Penetration(i int) float64 { return c.points[i].penetration }

// SetOverride installs a per-instance configuration block.
func (c *Contact) SetOverride(b *solver.Block) { c.override = b }

func (c *Contact) Kind() solver.Kind { return solver.KindContact }

func (c *Contact) Bodies() (a, b *dynamo.Body) { return c.a, c.b }

func (c *Contact) Override() *solver.Block { return c.override }

func (c *Contact) AtomCount() int { return 3 * len(c.points) }

func (c *Contact) UpdateAtoms() {
	for i := range c.points {
		p := &c.points[i]
		pA := c.a.WorldPoint(p.localA)
		pB := c.b.WorldPoint(p.localB)
		p.penetration = pA.Sub(pB).Dot(c.Normal)
	}
}

func (c *Contact) MoleculeCount() int { return 3 * len(c.points) }

func (c *Contact) rows(p *pointState) (normal, t1, t2 solver.Jacobian) {
	pA := c.a.WorldPoint(p.localA)
	pB := c.b.WorldPoint(p.localB)
	rA := pA.Sub(c.a.Center())
	rB := pB.Sub(c.b.Center())
	u1, u2 := tangents(c.Normal)
	return solver.LinearRow(c.Normal, rA, rB), solver.LinearRow(u1, rA, rB), solver.LinearRow(u2, rA, rB)
}

func (c *Contact) ComputeMolecules(w *solver.MoleculeWalker, p *solver.StepParams) {
	pol := p.Policy(c)
	factor, _ := pol.Factor(solver.LinearAxis)
	for i := range c.points {
		pt := &c.points[i]
		normal, t1, t2 := c.rows(pt)

		for k, row := range [2]solver.Jacobian{t1, t2} {
			m := w.Next()
			m.Reset(3*i + k)
			m.Jacobian = row
			solver.ComputeMass(c.a, c.b, m)
			limit := c.Friction * pt.normalImpulse
			m.MinImpulse, m.MaxImpulse = -limit, limit
			m.Impulse = pt.tangentImpulses[k] * p.WarmStartFactor
		}

		m := w.Next()
		m.Reset(3*i + 2)
		m.Jacobian = normal
		solver.ComputeMass(c.a, c.b, m)
		m.MinImpulse, m.MaxImpulse = 0, math.Inf(1)
		m.Error = math.Min(0, pol.Block.Slop-pt.penetration)
		m.Impulse = pt.normalImpulse * p.WarmStartFactor

		vn := solver.RelativeVelocity(c.a, c.b, m)
		switch {
		case c.Restitution > 0 && vn < -p.Config.RestitutionThreshold:
			m.Bias = c.Restitution * vn
		case !pol.PostStabilize && p.Dt > 0:
			m.Bias = factor * m.Error / p.Dt
		}
	}
}

func (c *Contact) WarmStart(w *solver.MoleculeWalker) {
	for n := c.MoleculeCount(); n > 0; n-- {
		solver.WarmStartFragment(c.a, c.b, w.Next())
	}
}

// Solve runs friction before the normal row. Friction bounds follow the normal
// impulse accumulated so far.
func (c *Contact) Solve(w *solver.MoleculeWalker) {
	for range c.points {
		f1, f2, n := w.Next(), w.Next(), w.Next()
		limit := c.Friction * n.Impulse
		for _, f := range [2]*solver.Molecule{f1, f2} {
			f.MinImpulse, f.MaxImpulse = -limit, limit
			solver.SolveFragment(c.a, c.b, f)
		}
		solver.SolveFragment(c.a, c.b, n)
	}
}

func (c *Contact) Commit(w *solver.MoleculeWalker) {
	for i := range c.points {
		pt := &c.points[i]
		pt.tangentImpulses[0] = w.Next().Impulse
		pt.tangentImpulses[1] = w.Next().Impulse
		pt.normalImpulse = w.Next().Impulse
	}
}

func (c *Contact) PositionMoleculeCount() int { return len(c.points) }

// ComputePositionMolecules emits the normal rows only.
func (c *Contact) ComputePositionMolecules(w *solver.MoleculeWalker, p *solver.StepParams) {
	pol := p.Policy(c)
	for i := range c.points {
		pt := &c.points[i]
		normal, _, _ := c.rows(pt)
		m := w.Next()
		m.Reset(3*i + 2)
		m.Jacobian = normal
		solver.ComputeMass(c.a, c.b, m)
		m.MinImpulse, m.MaxImpulse = 0, math.Inf(1)
		m.Error = math.Min(0, pol.Block.Slop-pt.penetration)
		m.ErrorCorrection = pol.ErrorCap(solver.LinearAxis)
	}
}

func (c *Contact) BatchEvents(solver.EventSink) {}

func tangents(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t mgl64.Vec3
	if math.Abs(n[0]) >= 0.57735 {
		t = mgl64.Vec3{n[1], -n[0], 0}
	} else {
		t = mgl64.Vec3{0, n[2], -n[1]}
	}
	t = t.Normalize()
	return t, n.Cross(t)
}
