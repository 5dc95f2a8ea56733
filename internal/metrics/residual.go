package metrics

import (
	"math"

	"github.com/san-kum/jointsim/internal/sim"
)

// Residual tracks the constraint error left after each step, as the mean or
// the worst case over the run.
type Residual struct {
	name    string
	worst   bool
	sum     float64
	max     float64
	samples int
}

func NewResidual() *Residual {
	return &Residual{name: "residual"}
}

func NewMaxResidual() *Residual {
	return &Residual{name: "max_residual", worst: true}
}

func (r *Residual) Name() string {
	return r.name
}

func (r *Residual) Observe(s *sim.Sample) {
	r.sum += s.Residual
	r.max = math.Max(r.max, s.Residual)
	r.samples++
}

func (r *Residual) Value() float64 {
	if r.worst {
		return r.max
	}
	if r.samples == 0 {
		return 0
	}
	return r.sum / float64(r.samples)
}

func (r *Residual) Reset() {
	r.sum = 0
	r.max = 0
	r.samples = 0
}
