package joints_test

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/solver"
)

var _ = Describe("LinearAxisJoint", func() {
	var (
		a, b *dynamo.Body
		j    *joints.LinearAxisJoint
	)

	BeforeEach(func() {
		a = unitBody("a", mgl64.Vec3{0, 0, 0})
		b = unitBody("b", mgl64.Vec3{1, 0, 0})
		j = joints.NewLinearAxis(a, b, a.Position, b.Position, mgl64.Vec3{1, 0, 0})
	})

	It("measures the signed separation along the axis", func() {
		j.UpdateAtoms()
		Expect(j.Atoms()[0].Value).To(BeNumerically("~", 1, 1e-12))
		Expect(j.Separation()).To(BeNumerically("~", 1, 1e-12))
	})

	It("converges to the target with post-stabilization", func() {
		cfg := solver.DefaultConfig()
		cfg.Correction = solver.PostStabilization
		w := newWorld(cfg, a, b)
		w.joints = []solver.Constraint{j}

		rep := w.step(10)
		Expect(j.Separation()).To(BeNumerically("~", 0, 1e-3))
		Expect(rep.PositionConstraints).To(Equal(1))
		Expect(a.LinearVelocity.Add(b.LinearVelocity).Len()).To(BeNumerically("<", 1e-12))
	})

	It("converges to the target with baumgarte", func() {
		w := newWorld(solver.DefaultConfig(), a, b)
		w.joints = []solver.Constraint{j}

		rep := w.step(90)
		Expect(j.Separation()).To(BeNumerically("~", 0, 1e-3))
		Expect(rep.PositionConstraints).To(BeZero())
	})

	It("leaves a satisfied joint alone", func() {
		j.Target = 1
		a.LinearVelocity = mgl64.Vec3{0, 3, 0}
		b.LinearVelocity = mgl64.Vec3{0, 3, 0}
		w := newWorld(solver.DefaultConfig(), a, b)
		w.joints = []solver.Constraint{j}

		w.step(20)
		Expect(a.LinearVelocity).To(Equal(mgl64.Vec3{0, 3, 0}))
		Expect(b.LinearVelocity).To(Equal(mgl64.Vec3{0, 3, 0}))
	})

	It("snaps once the impulse reaches its limit", func() {
		var events []solver.Event
		j.MaxImpulse = 0.01
		j.AutoSnaps = true
		j.SendsEvents = true
		b.LinearVelocity = mgl64.Vec3{5, 0, 0}

		s := solver.New(nil, solver.WithWorkers(1), solver.WithListener(solver.EventListenerFunc(func(e solver.Event) {
			events = append(events, e)
		})))
		s.Step(context.Background(), dt, []solver.Constraint{j}, nil)

		Expect(j.Snapped()).To(BeTrue())
		Expect(j.Valid()).To(BeFalse())
		kinds := []solver.EventKind{}
		for _, e := range events {
			kinds = append(kinds, e.Kind)
		}
		Expect(kinds).To(ConsistOf(solver.EventExceedImpulseLimit, solver.EventSnapped))

		rep := s.Step(context.Background(), dt, []solver.Constraint{j}, nil)
		Expect(rep.Molecules).To(BeZero())
	})

	It("is inert once a body is destroyed", func() {
		b.Destroy()
		Expect(j.Valid()).To(BeFalse())

		rep := solver.New(nil).Step(context.Background(), dt, []solver.Constraint{j}, nil)
		Expect(rep.Inert).To(HaveLen(1))
		Expect(rep.Molecules).To(BeZero())
	})

	It("falls back to a unit axis for a zero-length axis", func() {
		z := joints.NewLinearAxis(a, b, a.Position, b.Position, mgl64.Vec3{})
		z.UpdateAtoms()
		Expect(math.IsNaN(z.Atoms()[0].Value)).To(BeFalse())
	})
})

var _ = Describe("RevoluteJoint", func() {
	It("removes angular velocity on the locked axes and keeps the free axis", func() {
		b := unitBody("b", mgl64.Vec3{})
		b.AngularVelocity = mgl64.Vec3{0.6, 0, 0.8}
		j := joints.NewRevolute(nil, b, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})

		s := solver.New(nil, solver.WithWorkers(1))
		s.Step(context.Background(), dt, []solver.Constraint{j}, nil)

		Expect(b.AngularVelocity[0]).To(BeNumerically("~", 0, 1e-9))
		Expect(b.AngularVelocity[1]).To(BeNumerically("~", 0, 1e-9))
		Expect(b.AngularVelocity[2]).To(BeNumerically("~", 0.8, 1e-9))

		w := newWorld(nil, b)
		w.joints = []solver.Constraint{j}
		w.step(30)
		Expect(b.AngularVelocity[2]).To(BeNumerically("~", 0.8, 1e-6))
		Expect(b.Position.Len()).To(BeNumerically("<", 1e-6))
	})

	It("snaps the swing error to pi for exactly opposed axes", func() {
		b := unitBody("b", mgl64.Vec3{})
		j := joints.NewRevolute(nil, b, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
		b.Orientation = mgl64.QuatRotate(math.Pi, mgl64.Vec3{1, 0, 0})

		j.UpdateAtoms()
		atoms := j.Atoms()
		swing := math.Hypot(atoms[3].Value, atoms[4].Value)
		Expect(swing).To(BeNumerically("~", math.Pi, 1e-6))
	})

	It("reports the twist angle", func() {
		b := unitBody("b", mgl64.Vec3{})
		j := joints.NewRevolute(nil, b, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
		b.Orientation = mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1})
		Expect(j.Angle()).To(BeNumerically("~", 0.3, 1e-9))
	})
})

var _ = Describe("PrismaticJoint", func() {
	var (
		b *dynamo.Body
		j *joints.PrismaticJoint
	)

	BeforeEach(func() {
		b = unitBody("b", mgl64.Vec3{})
		j = joints.NewPrismatic(nil, b, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	})

	It("leaves the slide axis free by default", func() {
		b.LinearVelocity = mgl64.Vec3{2, 1, 0}
		solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, []solver.Constraint{j}, nil)
		Expect(b.LinearVelocity[0]).To(BeNumerically("~", 2, 1e-9))
		Expect(b.LinearVelocity[1]).To(BeNumerically("~", 0, 1e-9))
	})

	It("drives the slide axis with a motor", func() {
		j.SetMotor(2, 100)
		solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, []solver.Constraint{j}, nil)
		Expect(b.LinearVelocity[0]).To(BeNumerically("~", 2, 1e-9))
		Expect(j.Motor.Impulse(0)).To(BeNumerically("~", 2, 1e-9))
	})

	It("reports the upper limit once per contact", func() {
		var events []solver.Event
		s := solver.New(nil, solver.WithWorkers(1), solver.WithListener(solver.EventListenerFunc(func(e solver.Event) {
			events = append(events, e)
		})))
		j.SetLimit(-0.5, 0.5)
		j.SendsEvents = true
		b.Position = mgl64.Vec3{0.8, 0, 0}

		s.Step(context.Background(), dt, []solver.Constraint{j}, nil)
		s.Step(context.Background(), dt, []solver.Constraint{j}, nil)

		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(solver.EventUpperLimitReached))
		Expect(events[0].Atom).To(Equal(0))
		Expect(j.Atoms()[0].MaxImpulse).To(BeZero())
	})

	It("does not solve the limit between its bounds", func() {
		j.SetLimit(-0.5, 0.5)
		b.Position = mgl64.Vec3{0.2, 0, 0}
		j.UpdateAtoms()
		Expect(j.MoleculeCount()).To(Equal(5))
	})

	It("pulls back with a spring that skips the position pass", func() {
		j.SetSpring(2, 1)
		b.Position = mgl64.Vec3{0.5, 0, 0}
		j.UpdateAtoms()
		Expect(j.MoleculeCount()).To(Equal(6))
		Expect(j.PositionMoleculeCount()).To(Equal(5))

		cfg := solver.DefaultConfig()
		cfg.Correction = solver.PostStabilization
		w := newWorld(cfg, b)
		w.joints = []solver.Constraint{j}
		w.step(120)
		Expect(j.Translation()).To(BeNumerically("~", 0, 0.05))
	})
})

var _ = Describe("GrabJoint", func() {
	It("drags the body to the target", func() {
		b := unitBody("b", mgl64.Vec3{})
		j := joints.NewGrab(b, mgl64.Vec3{})
		j.MoveTo(mgl64.Vec3{1, 0, 0})

		w := newWorld(nil, b)
		w.joints = []solver.Constraint{j}
		w.step(240)
		Expect(b.Position.Sub(mgl64.Vec3{1, 0, 0}).Len()).To(BeNumerically("<", 0.05))
	})

	It("is always baumgarte", func() {
		b := unitBody("b", mgl64.Vec3{})
		j := joints.NewGrab(b, mgl64.Vec3{})
		cfg := solver.DefaultConfig()
		cfg.Correction = solver.PostStabilization
		Expect(cfg.ShouldSolvePosition(j)).To(BeFalse())
	})
})

var _ = Describe("CustomJoint", func() {
	pinY := func(b *dynamo.Body, solvePosition bool) *joints.CustomJoint {
		j := joints.NewCustom(nil, b)
		j.Update = func(j *joints.CustomJoint) {
			j.Rows = []joints.CustomRow{{
				Jacobian:      solver.Jacobian{LinearB: mgl64.Vec3{0, 1, 0}},
				Error:         b.Position[1],
				Filter:        solver.LinearAxis,
				SolvePosition: solvePosition,
			}}
		}
		return j
	}

	It("is post-stabilized exactly when it has position rows", func() {
		b := unitBody("b", mgl64.Vec3{0, 1, 0})
		cfg := solver.DefaultConfig()

		j := pinY(b, true)
		j.UpdateAtoms()
		Expect(cfg.ShouldSolvePosition(j)).To(BeTrue())

		k := pinY(b, false)
		k.UpdateAtoms()
		cfg.Correction = solver.PostStabilization
		Expect(cfg.ShouldSolvePosition(k)).To(BeFalse())
	})

	It("corrects authored rows in the position pass", func() {
		b := unitBody("b", mgl64.Vec3{0, 1, 0})
		j := pinY(b, true)
		w := newWorld(nil, b)
		w.joints = []solver.Constraint{j}

		w.step(10)
		Expect(b.Position[1]).To(BeNumerically("~", 0, 1e-3))
		Expect(b.LinearVelocity.Len()).To(BeNumerically("<", 1e-9))
	})

	It("ignores rows with an unknown filter", func() {
		b := unitBody("b", mgl64.Vec3{})
		b.LinearVelocity = mgl64.Vec3{0, 1, 0}
		j := joints.NewCustom(nil, b, joints.CustomRow{
			Jacobian: solver.Jacobian{LinearB: mgl64.Vec3{0, 1, 0}},
			Filter:   solver.AtomFilter(9),
		})

		solver.New(nil, solver.WithWorkers(1)).Step(context.Background(), dt, []solver.Constraint{j}, nil)
		Expect(b.LinearVelocity).To(Equal(mgl64.Vec3{0, 1, 0}))
	})
})

var _ = DescribeTable("molecule count symmetry with every sub-component",
	func(build func(a, b *dynamo.Body) joints.Joint) {
		a := unitBody("a", mgl64.Vec3{})
		b := unitBody("b", mgl64.Vec3{0.7, 0.2, 0})
		b.LinearVelocity = mgl64.Vec3{1, -2, 0.5}
		b.AngularVelocity = mgl64.Vec3{0.3, 1, -0.2}

		cfg := solver.DefaultConfig()
		cfg.Correction = solver.PostStabilization
		w := newWorld(cfg, a, b)
		w.joints = []solver.Constraint{build(a, b)}
		Expect(func() { w.step(30) }).NotTo(Panic())
		Expect(a.IsValid() && b.IsValid()).To(BeTrue())
	},
	Entry("linear axis", func(a, b *dynamo.Body) joints.Joint {
		j := joints.NewLinearAxis(a, b, a.Position, b.Position, mgl64.Vec3{1, 0, 0})
		j.SetLimit(0.5, 1)
		j.SetMotor(0.1, 1)
		return j
	}),
	Entry("prismatic", func(a, b *dynamo.Body) joints.Joint {
		j := joints.NewPrismatic(a, b, b.Position, mgl64.Vec3{1, 0, 0})
		j.SetLimit(-0.1, 0.1)
		j.SetMotor(1, 5)
		j.SetSpring(3, 0.5)
		return j
	}),
	Entry("revolute", func(a, b *dynamo.Body) joints.Joint {
		j := joints.NewRevolute(a, b, mgl64.Vec3{0.35, 0.1, 0}, mgl64.Vec3{0, 0, 1})
		j.SetLimit(-0.2, 0.2)
		j.SetMotor(-1, 2)
		return j
	}),
	Entry("grab", func(a, b *dynamo.Body) joints.Joint {
		j := joints.NewGrab(b, b.Position)
		j.MoveTo(mgl64.Vec3{2, 2, 0})
		j.SetRotationLocked(false)
		return j
	}),
)
