package joints

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

// RevoluteJoint pins two anchors together and aligns a hinge axis on each body,
// leaving rotation about the hinge free.
//
// Atoms 0-2 are the point rows, 3-4 the swing rows and 5 the twist about the
// hinge, which is only solved with a limit, motor or spring.
type RevoluteJoint struct {
	base

	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3
	LocalAxisB   mgl64.Vec3

	localRefA mgl64.Vec3
	localRefB mgl64.Vec3
}

// NewRevolute creates a hinge at the world anchor about the world axis. The
// current relative rotation is the zero twist angle.
func NewRevolute(a, b *dynamo.Body, anchor, axis mgl64.Vec3) *RevoluteJoint {
	axis = safeAxis(axis)
	ref, _ := basis(axis)
	return &RevoluteJoint{
		base:         newBase(solver.KindRevolute, a, b, sixAxes, 0b011111, Bit(5)),
		LocalAnchorA: a.LocalPoint(anchor),
		LocalAnchorB: b.LocalPoint(anchor),
		LocalAxisA:   a.LocalVector(axis),
		LocalAxisB:   b.LocalVector(axis),
		localRefA:    a.LocalVector(ref),
		localRefB:    b.LocalVector(ref),
	}
}

// Angle returns the twist about the hinge relative to the rest pose.
func (j *RevoluteJoint) Angle() float64 {
	h := safeAxis(j.a.WorldVector(j.LocalAxisA))
	return twistAngle(j.a.WorldVector(j.localRefA), j.b.WorldVector(j.localRefB), h)
}

func (j *RevoluteJoint) UpdateAtoms() {
	pA := j.a.WorldPoint(j.LocalAnchorA)
	pB := j.b.WorldPoint(j.LocalAnchorB)
	d := pB.Sub(pA)
	rA := pA.Sub(j.a.Center())
	rB := pB.Sub(j.b.Center())
	for k, axis := range worldAxes {
		j.atoms[k].Value = axis.Dot(d)
		j.rows[k] = solver.LinearRow(axis, rA, rB)
	}

	hA := safeAxis(j.a.WorldVector(j.LocalAxisA))
	hB := safeAxis(j.b.WorldVector(j.LocalAxisB))
	swing := swingError(hA, hB)
	t1, t2 := basis(hA)
	j.atoms[3].Value = swing.Dot(t1)
	j.rows[3] = solver.AngularRow(t1)
	j.atoms[4].Value = swing.Dot(t2)
	j.rows[4] = solver.AngularRow(t2)

	j.atoms[5].Value = twistAngle(j.a.WorldVector(j.localRefA), j.b.WorldVector(j.localRefB), hA)
	j.rows[5] = solver.AngularRow(hA)
	j.refresh()
}
