package joints

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

// LinearAxisJoint constrains the separation of two anchors measured along an
// axis fixed in body A.
type LinearAxisJoint struct {
	base

	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3
	// Target is the separation the joint drives toward.
	Target float64
}

// NewLinearAxis creates a joint between world anchors anchorA and anchorB along
// the world axis. Either body may be nil.
func NewLinearAxis(a, b *dynamo.Body, anchorA, anchorB, axis mgl64.Vec3) *LinearAxisJoint {
	return &LinearAxisJoint{
		base:         newBase(solver.KindLinearAxis, a, b, []solver.AtomFilter{solver.LinearAxis}, Bit(0), Bit(0)),
		LocalAnchorA: a.LocalPoint(anchorA),
		LocalAnchorB: b.LocalPoint(anchorB),
		LocalAxisA:   a.LocalVector(safeAxis(axis)),
	}
}

// Separation returns the current signed separation along the axis.
func (j *LinearAxisJoint) Separation() float64 {
	pA := j.a.WorldPoint(j.LocalAnchorA)
	pB := j.b.WorldPoint(j.LocalAnchorB)
	return safeAxis(j.a.WorldVector(j.LocalAxisA)).Dot(pB.Sub(pA))
}

func (j *LinearAxisJoint) UpdateAtoms() {
	pA := j.a.WorldPoint(j.LocalAnchorA)
	pB := j.b.WorldPoint(j.LocalAnchorB)
	u := safeAxis(j.a.WorldVector(j.LocalAxisA))

	j.atoms[0].Value = u.Dot(pB.Sub(pA))
	j.targets[0] = j.Target
	// The axis turns with A, so A's lever arm reaches to B's anchor.
	j.rows[0] = solver.LinearRow(u, pB.Sub(j.a.Center()), pB.Sub(j.b.Center()))
	j.refresh()
}
