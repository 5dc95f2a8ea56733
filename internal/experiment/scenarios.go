package experiment

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/contact"
	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/sim"
	"github.com/san-kum/jointsim/internal/solver"
)

var (
	xAxis = mgl64.Vec3{1, 0, 0}
	zAxis = mgl64.Vec3{0, 0, 1}
	cube  = mgl64.Vec3{0.25, 0.25, 0.25}
)

func world(cfg *config.Config, bodies ...*dynamo.Body) *sim.World {
	return &sim.World{Bodies: bodies, Gravity: mgl64.Vec3(cfg.Gravity)}
}

// breakable applies the scene's max impulse, if any, to j.
func breakable(cfg *config.Config, j interface {
	SetBreakable(maxImpulse float64)
}) {
	if cfg.Scene.MaxImpulse > 0 {
		j.SetBreakable(cfg.Scene.MaxImpulse)
	}
}

func buildSlider(cfg *config.Config) (*sim.World, error) {
	a := dynamo.NewBody("a", mgl64.Vec3{}, 1, cube)
	b := dynamo.NewBody("b", mgl64.Vec3{1 + cfg.Scene.Offset, 0, 0}, 1, cube)
	j := joints.NewLinearAxis(a, b, a.Position, b.Position, xAxis)
	j.Target = 1
	breakable(cfg, j)

	w := world(cfg, a, b)
	w.Joints = []joints.Joint{j}
	return w, nil
}

func buildPrismatic(cfg *config.Config) (*sim.World, error) {
	b := dynamo.NewBody("block", mgl64.Vec3{}, 1, cube)
	j := joints.NewPrismatic(nil, b, b.Position, xAxis)
	if cfg.Scene.Limit > 0 {
		j.SetLimit(-cfg.Scene.Limit, cfg.Scene.Limit)
	}
	if cfg.Scene.Speed != 0 {
		j.SetMotor(cfg.Scene.Speed, 10)
	}
	j.SendsEvents = true
	breakable(cfg, j)

	w := world(cfg, b)
	w.Joints = []joints.Joint{j}
	return w, nil
}

func buildHinge(cfg *config.Config) (*sim.World, error) {
	theta := cfg.Scene.Offset
	bob := dynamo.NewBody("bob", mgl64.Vec3{math.Sin(theta), -math.Cos(theta), 0}, 1, mgl64.Vec3{0.1, 0.1, 0.1})
	j := joints.NewRevolute(nil, bob, mgl64.Vec3{}, zAxis)
	if cfg.Scene.Limit > 0 {
		j.SetLimit(-cfg.Scene.Limit, cfg.Scene.Limit)
		j.SendsEvents = true
	}
	if cfg.Scene.Speed != 0 {
		j.SetMotor(cfg.Scene.Speed, 5)
	}
	breakable(cfg, j)

	w := world(cfg, bob)
	w.Joints = []joints.Joint{j}
	return w, nil
}

func buildGrab(cfg *config.Config) (*sim.World, error) {
	b := dynamo.NewBody("block", mgl64.Vec3{}, 1, cube)
	j := joints.NewGrab(b, b.WorldPoint(mgl64.Vec3{0.25, 0, 0}))
	j.MoveTo(mgl64.Vec3{cfg.Scene.Offset, 1, 0})
	j.SendsEvents = true
	breakable(cfg, j)

	w := world(cfg, b)
	w.Joints = []joints.Joint{j}
	return w, nil
}

func buildChain(cfg *config.Config) (*sim.World, error) {
	n := cfg.Scene.Links
	if n < 1 {
		return nil, fmt.Errorf("%w: chain needs at least one link", dynamo.ErrInvalidConfig)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	const length = 0.5

	w := world(cfg)
	var prev *dynamo.Body
	for i := 0; i < n; i++ {
		x := float64(i) * length
		link := dynamo.NewBody(fmt.Sprintf("link%d", i), mgl64.Vec3{x + length/2, 0, 0}, 1, mgl64.Vec3{length / 2, 0.05, 0.05})
		link.LinearVelocity = mgl64.Vec3{0, 0, (rng.Float64() - 0.5) * cfg.Scene.Speed}
		j := joints.NewRevolute(prev, link, mgl64.Vec3{x, 0, 0}, zAxis)
		breakable(cfg, j)

		w.Bodies = append(w.Bodies, link)
		w.Joints = append(w.Joints, j)
		prev = link
	}
	return w, nil
}

// buildCustom keeps a bead on the unit ring in the xy plane using two authored
// rows: the radial distance and the out-of-plane offset.
func buildCustom(cfg *config.Config) (*sim.World, error) {
	bead := dynamo.NewBody("bead", mgl64.Vec3{1 + cfg.Scene.Offset, 0, 0}, 1, mgl64.Vec3{0.05, 0.05, 0.05})
	bead.LinearVelocity = mgl64.Vec3{0, cfg.Scene.Speed, 0}

	j := joints.NewCustom(nil, bead)
	j.Update = func(j *joints.CustomJoint) {
		p := bead.Position
		radial := mgl64.Vec3{p[0], p[1], 0}
		r := radial.Len()
		if r > 1e-9 {
			radial = radial.Mul(1 / r)
		} else {
			radial = xAxis
		}
		j.Rows = append(j.Rows[:0],
			joints.CustomRow{
				Jacobian:      solver.Jacobian{LinearB: radial},
				Error:         r - 1,
				Filter:        solver.LinearAxis,
				SolvePosition: true,
			},
			joints.CustomRow{
				Jacobian:      solver.Jacobian{LinearB: zAxis},
				Error:         p[2],
				Filter:        solver.LinearAxis,
				SolvePosition: true,
			},
		)
	}

	w := world(cfg, bead)
	w.Joints = []joints.Joint{j}
	return w, nil
}

func buildRest(cfg *config.Config) (*sim.World, error) {
	const half = 0.5
	box := dynamo.NewBody("box", mgl64.Vec3{0, half + cfg.Scene.Offset, 0}, 1, mgl64.Vec3{half, half, half})
	box.LinearVelocity = mgl64.Vec3{cfg.Scene.Speed, 0, 0}

	w := world(cfg, box)
	w.Contacts = NewGroundPlane(cfg.Scene.Friction, cfg.Scene.Restitution, mgl64.Vec3{half, half, half})
	return w, nil
}

// GroundPlane generates box-versus-plane contacts at y = 0. One contact per
// body persists across steps so corner impulses warm start.
type GroundPlane struct {
	Friction    float64
	Restitution float64
	HalfExtents mgl64.Vec3

	contacts map[*dynamo.Body]*contact.Contact
}

func NewGroundPlane(friction, restitution float64, halfExtents mgl64.Vec3) *GroundPlane {
	return &GroundPlane{
		Friction:    friction,
		Restitution: restitution,
		HalfExtents: halfExtents,
		contacts:    make(map[*dynamo.Body]*contact.Contact),
	}
}

func (g *GroundPlane) Contacts(w *sim.World) []solver.Constraint {
	up := mgl64.Vec3{0, 1, 0}
	var out []solver.Constraint
	for _, b := range w.Bodies {
		if !b.Movable() {
			delete(g.contacts, b)
			continue
		}
		var pts []contact.Point
		id := uint64(0)
		for _, sx := range []float64{-1, 1} {
			for _, sy := range []float64{-1, 1} {
				for _, sz := range []float64{-1, 1} {
					id++
					corner := b.WorldPoint(mgl64.Vec3{sx * g.HalfExtents[0], sy * g.HalfExtents[1], sz * g.HalfExtents[2]})
					if pen := -corner[1]; pen > 0 {
						pts = append(pts, contact.Point{WorldPoint: corner.Add(up.Mul(pen / 2)), Penetration: pen, ID: id})
					}
				}
			}
		}
		c, ok := g.contacts[b]
		if len(pts) == 0 {
			if ok {
				delete(g.contacts, b)
			}
			continue
		}
		if !ok {
			c = contact.New(nil, b, up, g.Friction, g.Restitution)
			g.contacts[b] = c
		}
		c.Update(pts)
		out = append(out, c)
	}
	return out
}
