package joints

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

var sixAxes = []solver.AtomFilter{
	solver.LinearAxis, solver.LinearAxis, solver.LinearAxis,
	solver.AngularAxis, solver.AngularAxis, solver.AngularAxis,
}

// PrismaticJoint lets body B slide along an axis fixed in body A while locking
// the two perpendicular directions and all relative rotation.
//
// Atom 0 is the slide axis. It is only solved with a limit, motor or spring.
type PrismaticJoint struct {
	base

	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3
	// ReferenceRotation is B's orientation relative to A at rest.
	ReferenceRotation mgl64.Quat
}

// NewPrismatic creates a prismatic joint at the world anchor sliding along the
// world axis.
func NewPrismatic(a, b *dynamo.Body, anchor, axis mgl64.Vec3) *PrismaticJoint {
	return &PrismaticJoint{
		base:              newBase(solver.KindPrismatic, a, b, sixAxes, 0b111110, Bit(0)),
		LocalAnchorA:      a.LocalPoint(anchor),
		LocalAnchorB:      b.LocalPoint(anchor),
		LocalAxisA:        a.LocalVector(safeAxis(axis)),
		ReferenceRotation: a.Rotation().Conjugate().Mul(b.Rotation()),
	}
}

// Translation returns the signed slide distance from the rest position.
func (j *PrismaticJoint) Translation() float64 {
	pA := j.a.WorldPoint(j.LocalAnchorA)
	pB := j.b.WorldPoint(j.LocalAnchorB)
	return safeAxis(j.a.WorldVector(j.LocalAxisA)).Dot(pB.Sub(pA))
}

func (j *PrismaticJoint) UpdateAtoms() {
	pA := j.a.WorldPoint(j.LocalAnchorA)
	pB := j.b.WorldPoint(j.LocalAnchorB)
	d := pB.Sub(pA)
	rA := pB.Sub(j.a.Center())
	rB := pB.Sub(j.b.Center())

	u := safeAxis(j.a.WorldVector(j.LocalAxisA))
	t1, t2 := basis(u)
	for k, axis := range [3]mgl64.Vec3{u, t1, t2} {
		j.atoms[k].Value = axis.Dot(d)
		j.rows[k] = solver.LinearRow(axis, rA, rB)
	}

	rot := rotationError(j.b.Rotation(), j.a.Rotation().Mul(j.ReferenceRotation))
	for k, axis := range worldAxes {
		j.atoms[3+k].Value = rot.Dot(axis)
		j.rows[3+k] = solver.AngularRow(axis)
	}
	j.refresh()
}
