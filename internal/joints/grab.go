package joints

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

const (
	grabFrequency  = 5.0
	grabDamping    = 0.7
	grabMaxImpulse = 1000.0
	allSix         = Mask(0b111111)
)

// GrabJoint drags a point on a body, and optionally its orientation, toward a
// world target through soft rows with a finite max impulse.
type GrabJoint struct {
	base

	LocalAnchor       mgl64.Vec3
	Target            mgl64.Vec3
	TargetOrientation mgl64.Quat
}

// NewGrab grabs body at the world point. The target starts at the grab point
// and the body's current orientation.
func NewGrab(body *dynamo.Body, point mgl64.Vec3) *GrabJoint {
	j := &GrabJoint{
		base:              newBase(solver.KindGrab, nil, body, sixAxes, allSix, allSix),
		LocalAnchor:       body.LocalPoint(point),
		Target:            point,
		TargetOrientation: body.Rotation(),
	}
	j.MaxImpulse = grabMaxImpulse
	j.SetSpring(grabFrequency, grabDamping)
	return j
}

// MoveTo sets a new world target for the grab point.
func (j *GrabJoint) MoveTo(target mgl64.Vec3) { j.Target = target }

// SetRotationLocked toggles the angular rows.
func (j *GrabJoint) SetRotationLocked(locked bool) {
	if locked {
		j.defaultMask |= 0b111000
	} else {
		j.defaultMask &^= 0b111000
	}
	if j.Spring != nil {
		j.Spring.Mask = j.defaultMask
	}
}

func (j *GrabJoint) UpdateAtoms() {
	p := j.b.WorldPoint(j.LocalAnchor)
	d := p.Sub(j.Target)
	rB := p.Sub(j.b.Center())
	for k, axis := range worldAxes {
		j.atoms[k].Value = axis.Dot(d)
		j.rows[k] = solver.LinearRow(axis, mgl64.Vec3{}, rB)
	}

	rot := rotationError(j.b.Rotation(), j.TargetOrientation)
	for k, axis := range worldAxes {
		j.atoms[3+k].Value = rot.Dot(axis)
		j.rows[3+k] = solver.AngularRow(axis)
	}
	j.refresh()
}
