package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/jointsim/internal/solver"
)

const namespace = "jointsim"

// SolverCollector exports solver step reports as Prometheus metrics. It
// implements solver.Recorder.
type SolverCollector struct {
	steps         prometheus.Counter
	stepDuration  prometheus.Histogram
	stageDuration *prometheus.HistogramVec
	constraints   prometheus.Gauge
	molecules     prometheus.Gauge
	phases        prometheus.Gauge
	inert         prometheus.Counter
	events        *prometheus.CounterVec
}

// NewSolverCollector registers the solver metrics on reg. A nil reg uses the
// default registerer.
func NewSolverCollector(reg prometheus.Registerer) *SolverCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &SolverCollector{
		steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "steps_total",
			Help:      "Total solver steps",
		}),
		stepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "step_duration_seconds",
			Help:      "Wall time of a full solver step",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"stage"}),
		constraints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "active_constraints",
			Help:      "Constraints solved in the last step",
		}),
		molecules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "molecules",
			Help:      "Molecules emitted in the last step",
		}),
		phases: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "phases",
			Help:      "Independent phases in the last step",
		}),
		inert: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "inert_constraints_total",
			Help:      "Constraints skipped because a body was destroyed",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "events_total",
			Help:      "Joint events by kind",
		}, []string{"kind"}),
	}
}

func (c *SolverCollector) ObserveStep(r *solver.Report) {
	c.steps.Inc()
	c.stepDuration.Observe(r.Duration.Seconds())
	for st := solver.UpdateData; st <= solver.BatchEvents; st++ {
		c.stageDuration.WithLabelValues(st.String()).Observe(r.Stages[st].Seconds())
	}
	c.constraints.Set(float64(r.Active))
	c.molecules.Set(float64(r.Molecules))
	c.phases.Set(float64(r.Phases))
	c.inert.Add(float64(len(r.Inert)))
	for _, e := range r.Events {
		c.events.WithLabelValues(e.Kind.String()).Inc()
	}
}
