package dynamo

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

var nextBodyID atomic.Int64

// Body is the velocity, mass and transform state of one rigid body.
type Body struct {
	ID   int64
	Name string

	Position    mgl64.Vec3
	Orientation mgl64.Quat

	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3

	InvMass         float64
	InvInertiaLocal mgl64.Mat3

	destroyed bool
}

// NewBody creates a dynamic body at position with the given mass and a solid-box
// inertia for the given half extents. A zero mass creates a static body.
func NewBody(name string, position mgl64.Vec3, mass float64, halfExtents mgl64.Vec3) *Body {
	b := &Body{
		ID:          nextBodyID.Add(1),
		Name:        name,
		Position:    position,
		Orientation: mgl64.QuatIdent(),
	}
	b.SetMass(mass, halfExtents)
	return b
}

// NewStatic creates a body that never moves.
func NewStatic(name string, position mgl64.Vec3) *Body {
	return NewBody(name, position, 0, mgl64.Vec3{})
}

// SetMass sets the inverse mass and the inverse inertia of a solid box.
func (b *Body) SetMass(mass float64, halfExtents mgl64.Vec3) {
	if mass <= 0 {
		b.InvMass = 0
		b.InvInertiaLocal = mgl64.Mat3{}
		return
	}
	b.InvMass = 1 / mass

	x2 := 4 * halfExtents[0] * halfExtents[0]
	y2 := 4 * halfExtents[1] * halfExtents[1]
	z2 := 4 * halfExtents[2] * halfExtents[2]
	inertia := mgl64.Vec3{
		mass * (y2 + z2) / 12,
		mass * (x2 + z2) / 12,
		mass * (x2 + y2) / 12,
	}
	var inv mgl64.Vec3
	for i := range inertia {
		if inertia[i] > 0 {
			inv[i] = 1 / inertia[i]
		}
	}
	b.InvInertiaLocal = mgl64.Diag3(inv)
}

// Destroy marks the body as removed. Constraints touching it become inert.
func (b *Body) Destroy() { b.destroyed = true }

// Valid reports whether the body is usable. The world endpoint (nil) is valid.
func (b *Body) Valid() bool { return b == nil || !b.destroyed }

// Static reports whether the body can never move. The world endpoint is static.
func (b *Body) Static() bool {
	return b == nil || (b.InvMass == 0 && b.InvInertiaLocal == mgl64.Mat3{})
}

// Movable reports whether the solver may write to the body.
func (b *Body) Movable() bool { return b.Valid() && !b.Static() }

// InvInertiaWorld returns R * I^-1 * R^T for the current orientation.
func (b *Body) InvInertiaWorld() mgl64.Mat3 {
	if b == nil {
		return mgl64.Mat3{}
	}
	r := b.Orientation.Mat4().Mat3()
	return r.Mul3(b.InvInertiaLocal).Mul3(r.Transpose())
}

// InverseMass returns 0 for the world endpoint.
func (b *Body) InverseMass() float64 {
	if b == nil {
		return 0
	}
	return b.InvMass
}

// Center returns the body position, or the origin for the world endpoint.
func (b *Body) Center() mgl64.Vec3 {
	if b == nil {
		return mgl64.Vec3{}
	}
	return b.Position
}

// Rotation returns the body orientation, or identity for the world endpoint.
func (b *Body) Rotation() mgl64.Quat {
	if b == nil {
		return mgl64.QuatIdent()
	}
	return b.Orientation
}

// WorldPoint transforms a body-local point into world space.
func (b *Body) WorldPoint(local mgl64.Vec3) mgl64.Vec3 {
	if b == nil {
		return local
	}
	return b.Position.Add(b.Orientation.Rotate(local))
}

// LocalPoint transforms a world point into body-local space.
func (b *Body) LocalPoint(world mgl64.Vec3) mgl64.Vec3 {
	if b == nil {
		return world
	}
	return b.Orientation.Conjugate().Rotate(world.Sub(b.Position))
}

// WorldVector rotates a body-local direction into world space.
func (b *Body) WorldVector(local mgl64.Vec3) mgl64.Vec3 {
	if b == nil {
		return local
	}
	return b.Orientation.Rotate(local)
}

// LocalVector rotates a world direction into body-local space.
func (b *Body) LocalVector(world mgl64.Vec3) mgl64.Vec3 {
	if b == nil {
		return world
	}
	return b.Orientation.Conjugate().Rotate(world)
}

// Velocities returns the linear and angular velocity (zero for the world).
func (b *Body) Velocities() (mgl64.Vec3, mgl64.Vec3) {
	if b == nil {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	return b.LinearVelocity, b.AngularVelocity
}

// PointVelocity returns the velocity of a world point attached to the body.
func (b *Body) PointVelocity(world mgl64.Vec3) mgl64.Vec3 {
	if b == nil {
		return mgl64.Vec3{}
	}
	r := world.Sub(b.Position)
	return b.LinearVelocity.Add(b.AngularVelocity.Cross(r))
}

// Momentum returns the linear momentum.
func (b *Body) Momentum() mgl64.Vec3 {
	if b == nil || b.InvMass == 0 {
		return mgl64.Vec3{}
	}
	return b.LinearVelocity.Mul(1 / b.InvMass)
}

// KineticEnergy returns the translational plus rotational kinetic energy.
func (b *Body) KineticEnergy() float64 {
	if b.Static() {
		return 0
	}
	var e float64
	if b.InvMass > 0 {
		e += 0.5 * b.LinearVelocity.Dot(b.LinearVelocity) / b.InvMass
	}
	inv := b.InvInertiaWorld()
	if inv.Det() != 0 {
		e += 0.5 * b.AngularVelocity.Dot(inv.Inv().Mul3x1(b.AngularVelocity))
	}
	return e
}

// Integrate advances the transform by the current velocities over dt.
func (b *Body) Integrate(dt float64) {
	if !b.Movable() {
		return
	}
	b.Position = b.Position.Add(b.LinearVelocity.Mul(dt))
	b.Rotate(b.AngularVelocity.Mul(dt))
}

// Rotate applies a small world-space rotation vector to the orientation.
func (b *Body) Rotate(delta mgl64.Vec3) {
	if delta.Len() == 0 {
		return
	}
	dq := mgl64.Quat{W: 0, V: delta.Mul(0.5)}.Mul(b.Orientation)
	b.Orientation = b.Orientation.Add(dq).Normalize()
}

// IsValid reports whether every component is finite.
func (b *Body) IsValid() bool {
	if b == nil {
		return true
	}
	for _, v := range [][3]float64{b.Position, b.LinearVelocity, b.AngularVelocity} {
		for _, c := range v {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return false
			}
		}
	}
	return true
}

// Snapshot is a plain copy of a body's state used for recording runs.
type Snapshot struct {
	ID              int64
	Name            string
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

func (b *Body) Snapshot() Snapshot {
	return Snapshot{
		ID:              b.ID,
		Name:            b.Name,
		Position:        b.Position,
		Orientation:     b.Orientation,
		LinearVelocity:  b.LinearVelocity,
		AngularVelocity: b.AngularVelocity,
	}
}
