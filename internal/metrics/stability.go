package metrics

import (
	"math"

	"github.com/san-kum/jointsim/internal/sim"
)

// Stability is the fraction of steps whose residual stayed under threshold and
// whose bodies stayed finite.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(smp *sim.Sample) {
	s.samples++
	if math.IsNaN(smp.Residual) || smp.Residual > s.threshold || math.IsNaN(smp.Energy) || math.IsInf(smp.Energy, 0) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Default returns the metric set the CLI attaches to every run.
func Default() []sim.Metric {
	return []sim.Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewResidual(),
		NewMaxResidual(),
		NewStability(0.05),
	}
}
