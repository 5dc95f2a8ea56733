package contact

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

const (
	dt      = 1.0 / 60
	gravity = 9.81
)

var up = mgl64.Vec3{0, 1, 0}

// puck is a unit mass that cannot rotate.
func puck(pos mgl64.Vec3) *dynamo.Body {
	b := dynamo.NewBody("puck", pos, 1, mgl64.Vec3{0.5, 0.5, 0.5})
	b.InvInertiaLocal = mgl64.Mat3{}
	return b
}

func corners(y, penetration float64) []Point {
	var pts []Point
	id := uint64(1)
	for _, x := range []float64{-0.5, 0.5} {
		for _, z := range []float64{-0.5, 0.5} {
			pts = append(pts, Point{WorldPoint: mgl64.Vec3{x, y, z}, Penetration: penetration, ID: id})
			id++
		}
	}
	return pts
}

func step(s *solver.Solver, c *Contact, b *dynamo.Body) solver.Report {
	b.LinearVelocity[1] -= gravity * dt
	rep := s.Step(context.Background(), dt, nil, []solver.Constraint{c})
	b.Integrate(dt)
	return rep
}

func TestRestingBoxStaysPut(t *testing.T) {
	box := dynamo.NewBody("box", mgl64.Vec3{0, 0.5, 0}, 1, mgl64.Vec3{0.5, 0.5, 0.5})
	c := New(nil, box, up, 0.5, 0)
	c.Update(corners(0, 0.01))
	require.Equal(t, 12, c.AtomCount())

	s := solver.New(nil, solver.WithWorkers(1))
	for i := 0; i < 120; i++ {
		step(s, c, box)
	}

	require.True(t, box.IsValid())
	assert.InDelta(t, 0.5, box.Position[1], 0.03)
	assert.InDelta(t, 0, box.LinearVelocity[1], 0.05)
	total := 0.0
	for i := 0; i < c.PointCount(); i++ {
		assert.Less(t, c.Penetration(i), 0.05)
		assert.GreaterOrEqual(t, c.NormalImpulse(i), 0.0)
		total += c.NormalImpulse(i)
	}
	assert.InDelta(t, gravity*dt, total, 0.01)
}

func TestNormalImpulseNeverPulls(t *testing.T) {
	b := puck(mgl64.Vec3{0, 0.5, 0})
	b.LinearVelocity = mgl64.Vec3{0, 3, 0}
	c := New(nil, b, up, 0.5, 0)
	c.Update([]Point{{Penetration: 0, ID: 1}})

	solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, nil, []solver.Constraint{c})
	assert.Zero(t, c.NormalImpulse(0))
	assert.Equal(t, mgl64.Vec3{0, 3, 0}, b.LinearVelocity)
}

func TestUpdateCarriesImpulsesByID(t *testing.T) {
	b := puck(mgl64.Vec3{0, 0.5, 0})
	b.LinearVelocity = mgl64.Vec3{0, -2, 0}
	c := New(nil, b, up, 0.5, 0)
	c.Update([]Point{
		{WorldPoint: mgl64.Vec3{-0.5, 0, 0}, ID: 1},
		{WorldPoint: mgl64.Vec3{0.5, 0, 0}, ID: 2},
	})
	solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, nil, []solver.Constraint{c})

	kept := c.NormalImpulse(0)
	require.NotZero(t, kept)

	c.Update([]Point{
		{WorldPoint: mgl64.Vec3{0, 0, 0.5}, ID: 3},
		{WorldPoint: mgl64.Vec3{-0.5, 0, 0}, ID: 1},
	})
	assert.Zero(t, c.NormalImpulse(0))
	assert.Equal(t, kept, c.NormalImpulse(1))
}

func TestFrictionIsBoundedByNormalImpulse(t *testing.T) {
	const mu = 0.5
	b := puck(mgl64.Vec3{0, 0.5, 0})
	b.LinearVelocity = mgl64.Vec3{5, 0, 0}
	c := New(nil, b, up, mu, 0)
	c.Update(corners(0, 0))

	step(solver.New(nil, solver.WithWorkers(1)), c, b)

	assert.InDelta(t, 5-mu*gravity*dt, b.LinearVelocity[0], 1e-9)
	assert.InDelta(t, 0, b.LinearVelocity[1], 1e-9)
}

func TestFrictionStopsSlowSliding(t *testing.T) {
	b := puck(mgl64.Vec3{0, 0.5, 0})
	b.LinearVelocity = mgl64.Vec3{0.01, 0, 0}
	c := New(nil, b, up, 0.8, 0)
	c.Update(corners(0, 0))

	step(solver.New(nil, solver.WithWorkers(1)), c, b)
	assert.InDelta(t, 0, b.LinearVelocity[0], 1e-9)
}

func TestRestitution(t *testing.T) {
	tests := []struct {
		name   string
		vy     float64
		wantVy float64
	}{
		{"bounces above threshold", -4, 2},
		{"sticks below threshold", -0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := puck(mgl64.Vec3{0, 0.5, 0})
			b.LinearVelocity = mgl64.Vec3{0, tt.vy, 0}
			c := New(nil, b, up, 0, 0.5)
			c.Update([]Point{{ID: 1}})

			solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, nil, []solver.Constraint{c})
			assert.InDelta(t, tt.wantVy, b.LinearVelocity[1], 1e-9)
		})
	}
}

func TestPositionPassPushesApart(t *testing.T) {
	b := puck(mgl64.Vec3{0, 0.5, 0})
	c := New(nil, b, up, 0.5, 0)
	c.Update([]Point{{Penetration: 0.3, ID: 1}})
	o := solver.DefaultBlock(solver.KindContact)
	o.Correction = solver.PostStabilization
	c.SetOverride(&o)

	rep := solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, nil, []solver.Constraint{c})

	assert.Equal(t, 1, rep.PositionConstraints)
	assert.InDelta(t, o.Slop, c.Penetration(0), 1e-9)
	assert.InDelta(t, 0.5+0.3-o.Slop, b.Position[1], 1e-9)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity)
}

func TestStaticPairIsSkipped(t *testing.T) {
	ground := dynamo.NewStatic("ground", mgl64.Vec3{})
	c := New(ground, nil, up, 0.5, 0)
	c.Update([]Point{{Penetration: 0.2, ID: 1}})

	rep := solver.New(nil).Step(context.Background(), dt, nil, []solver.Constraint{c})
	assert.Equal(t, 3, rep.Molecules)
	assert.False(t, math.IsNaN(c.NormalImpulse(0)))
	assert.Zero(t, c.NormalImpulse(0))
}

func TestZeroNormalFallsBackToUp(t *testing.T) {
	c := New(nil, nil, mgl64.Vec3{}, 0, 0)
	assert.Equal(t, up, c.Normal)
}
