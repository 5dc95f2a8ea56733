package joints

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const axisEpsilon = 1e-9

var worldAxes = [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// safeAxis normalizes v, falling back to +X for a zero-length axis.
func safeAxis(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < axisEpsilon || math.IsNaN(l) {
		return mgl64.Vec3{1, 0, 0}
	}
	return v.Mul(1 / l)
}

// basis returns two unit vectors orthogonal to the unit vector n and to each
// other.
func basis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t mgl64.Vec3
	if math.Abs(n[0]) >= 0.57735 {
		t = mgl64.Vec3{n[1], -n[0], 0}
	} else {
		t = mgl64.Vec3{0, n[2], -n[1]}
	}
	t = t.Normalize()
	return t, n.Cross(t)
}

// rotationError returns the rotation vector taking target to current, using the
// shortest arc.
func rotationError(current, target mgl64.Quat) mgl64.Vec3 {
	e := current.Mul(target.Conjugate())
	if e.W < 0 {
		e = e.Scale(-1)
	}
	s := e.V.Len()
	if s < axisEpsilon {
		return e.V.Mul(2)
	}
	angle := 2 * math.Atan2(s, e.W)
	return e.V.Mul(angle / s)
}

// swingError returns the rotation vector taking axis a onto axis b. Exactly
// opposed axes have no unique arc; the error snaps to pi about a fixed
// perpendicular of a.
func swingError(a, b mgl64.Vec3) mgl64.Vec3 {
	c := a.Cross(b)
	s := c.Len()
	d := a.Dot(b)
	if s < axisEpsilon {
		if d < 0 {
			t, _ := basis(a)
			return t.Mul(math.Pi)
		}
		return mgl64.Vec3{}
	}
	return c.Mul(math.Atan2(s, d) / s)
}

// twistAngle returns the signed angle from ra to rb about the unit axis n.
func twistAngle(ra, rb, n mgl64.Vec3) float64 {
	return math.Atan2(ra.Cross(rb).Dot(n), ra.Dot(rb))
}
