package solver

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/jointsim/internal/dynamo"
)

func unitBody(name string, pos mgl64.Vec3) *dynamo.Body {
	b := dynamo.NewBody(name, pos, 1, mgl64.Vec3{0.5, 0.5, 0.5})
	b.InvInertiaLocal = mgl64.Ident3()
	return b
}

func TestSolveFragmentSaturatesAtLimit(t *testing.T) {
	b := unitBody("b", mgl64.Vec3{})
	b.LinearVelocity = mgl64.Vec3{-8, 0, 0}

	var m Molecule
	m.Reset(0)
	m.Jacobian = Jacobian{LinearB: mgl64.Vec3{1, 0, 0}}
	ComputeMass(nil, b, &m)
	m.MinImpulse, m.MaxImpulse = 0, 5

	require.InDelta(t, 1.0, m.Mass, 1e-12)
	SolveFragment(nil, b, &m)

	assert.Equal(t, 5.0, m.Impulse)
	assert.InDelta(t, -3.0, b.LinearVelocity[0], 1e-12)

	// A second pass is still pinned at the bound.
	SolveFragment(nil, b, &m)
	assert.Equal(t, 5.0, m.Impulse)
}

func TestSolveFragmentNeverWrapsNegative(t *testing.T) {
	b := unitBody("b", mgl64.Vec3{})
	b.LinearVelocity = mgl64.Vec3{3, 0, 0}

	var m Molecule
	m.Reset(0)
	m.Jacobian = Jacobian{LinearB: mgl64.Vec3{1, 0, 0}}
	ComputeMass(nil, b, &m)
	m.MinImpulse, m.MaxImpulse = 0, 5

	SolveFragment(nil, b, &m)
	assert.Equal(t, 0.0, m.Impulse)
	assert.Equal(t, 3.0, b.LinearVelocity[0])
}

func TestImpulseSymmetry(t *testing.T) {
	a := unitBody("a", mgl64.Vec3{0, 0, 0})
	b := unitBody("b", mgl64.Vec3{1, 0.2, 0})
	a.LinearVelocity = mgl64.Vec3{0.3, -1, 2}
	b.LinearVelocity = mgl64.Vec3{-2, 0.5, 0.1}
	a.AngularVelocity = mgl64.Vec3{0.1, 0.2, 0.3}
	b.AngularVelocity = mgl64.Vec3{-0.4, 0, 1}

	u := mgl64.Vec3{1, 1, 0}.Normalize()
	anchor := mgl64.Vec3{0.5, 0.1, 0}
	var m Molecule
	m.Reset(0)
	m.Jacobian = LinearRow(u, anchor.Sub(a.Position), anchor.Sub(b.Position))
	ComputeMass(a, b, &m)
	m.Bias = 0.7

	momentum := a.Momentum().Add(b.Momentum())
	for i := 0; i < 10; i++ {
		pa, pb := a.Momentum(), b.Momentum()
		SolveFragment(a, b, &m)
		da := a.Momentum().Sub(pa)
		db := b.Momentum().Sub(pb)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, -da[k], db[k], 1e-12, "iteration %d axis %d", i, k)
		}
	}
	total := a.Momentum().Add(b.Momentum())
	for k := 0; k < 3; k++ {
		assert.InDelta(t, momentum[k], total[k], 1e-12)
	}
}

func TestStaticEndpointIsNeverWritten(t *testing.T) {
	ground := dynamo.NewStatic("ground", mgl64.Vec3{})
	b := unitBody("b", mgl64.Vec3{0, 1, 0})
	b.LinearVelocity = mgl64.Vec3{0, -1, 0}

	var m Molecule
	m.Reset(0)
	m.Jacobian = LinearRow(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{})
	ComputeMass(ground, b, &m)

	assert.Zero(t, m.InvMassA)
	assert.Equal(t, mgl64.Vec3{}, m.AngularDeltaA)

	SolveFragment(ground, b, &m)
	assert.Equal(t, mgl64.Vec3{}, ground.LinearVelocity)
	assert.Equal(t, mgl64.Vec3{}, ground.AngularVelocity)
	assert.InDelta(t, 0, b.LinearVelocity[1], 1e-12)
}

func TestDegenerateRowIsInert(t *testing.T) {
	var m Molecule
	m.Reset(0)
	m.Jacobian = Jacobian{LinearA: mgl64.Vec3{1, 0, 0}, LinearB: mgl64.Vec3{-1, 0, 0}}
	ComputeMass(nil, nil, &m)

	assert.True(t, m.Inert())
	assert.Zero(t, SolveFragment(nil, nil, &m))
	assert.False(t, math.IsNaN(m.Impulse))
}

func TestSoftenMolecule(t *testing.T) {
	var m Molecule
	m.Reset(0)
	m.Mass = 2
	m.Error = 0.1

	SoftenMolecule(&m, 0, 0.5, 1.0/60)
	assert.Equal(t, 2.0, m.Mass)
	assert.Zero(t, m.Gamma)

	SoftenMolecule(&m, 4, 0.5, 1.0/60)
	assert.Greater(t, m.Gamma, 0.0)
	assert.Less(t, m.Mass, 2.0)
	assert.Greater(t, m.Bias, 0.0)
}

func TestSolvePositionFragment(t *testing.T) {
	tests := []struct {
		name     string
		err      float64
		min, max float64
		wantMove float64
	}{
		{"equality pulls", 0.1, math.Inf(-1), math.Inf(1), -0.1},
		{"error capped", 1.0, math.Inf(-1), math.Inf(1), -0.2},
		{"lower limit pushes", -0.1, 0, math.Inf(1), 0.1},
		{"lower limit never pulls", 0.1, 0, math.Inf(1), 0},
		{"upper limit never pushes", -0.1, math.Inf(-1), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := unitBody("b", mgl64.Vec3{})
			var m Molecule
			m.Reset(0)
			m.Jacobian = Jacobian{LinearB: mgl64.Vec3{1, 0, 0}}
			ComputeMass(nil, b, &m)
			m.Error = tt.err
			m.ErrorCorrection = 0.2
			m.MinImpulse, m.MaxImpulse = tt.min, tt.max

			SolvePositionFragment(nil, b, &m)
			assert.InDelta(t, tt.wantMove, b.Position[0], 1e-12)
			assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity)
		})
	}
}

func TestWalkerOverrunPanics(t *testing.T) {
	w := NewWalker(make([]Molecule, 2))
	w.Next()
	w.Next()
	assert.Equal(t, 2, w.Used())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*CountMismatchError)
		require.True(t, ok)
		assert.ErrorIs(t, err, dynamo.ErrCountMismatch)
	}()
	w.Next()
}
