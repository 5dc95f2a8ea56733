package solver_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/joints"
	"github.com/san-kum/jointsim/internal/solver"
)

func chain(n int) ([]*dynamo.Body, []solver.Constraint) {
	bodies := make([]*dynamo.Body, n)
	cs := make([]solver.Constraint, n)
	var prev *dynamo.Body
	for i := range bodies {
		b := dynamo.NewBody(fmt.Sprintf("link%d", i), mgl64.Vec3{float64(i) + 0.5, 0, 0}, 1, mgl64.Vec3{0.5, 0.1, 0.1})
		bodies[i] = b
		cs[i] = joints.NewRevolute(prev, b, mgl64.Vec3{float64(i), 0, 0}, mgl64.Vec3{0, 0, 1})
		prev = b
	}
	return bodies, cs
}

func BenchmarkStepChain(b *testing.B) {
	for _, n := range []int{16, 256, 1024} {
		for _, workers := range []int{1, dynamo.DefaultWorkers()} {
			b.Run(fmt.Sprintf("links=%d/workers=%d", n, workers), func(b *testing.B) {
				bodies, cs := chain(n)
				s := solver.New(nil, solver.WithWorkers(workers))
				ctx := context.Background()
				const dt = 1.0 / 60

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					for _, body := range bodies {
						body.LinearVelocity[1] -= 9.81 * dt
					}
					s.Step(ctx, dt, cs, nil)
					for _, body := range bodies {
						body.Integrate(dt)
					}
				}
			})
		}
	}
}

func BenchmarkSplitPhases(b *testing.B) {
	_, cs := chain(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		solver.SplitPhases(cs)
	}
}
