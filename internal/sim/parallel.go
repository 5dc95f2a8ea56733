package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/jointsim/internal/solver"
)

// WorldFactory builds a fresh world for one ensemble member.
type WorldFactory func(seed int64) (*World, error)

// Ensemble runs independent copies of a world, one per seed, concurrently.
// Every member gets its own solver so the runs share no state.
type Ensemble struct {
	build     WorldFactory
	solverCfg *solver.Config
	numRuns   int
	seedStart int64
	workers   int
	metrics   func() []Metric
}

func NewEnsemble(build WorldFactory, solverCfg *solver.Config, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{build: build, solverCfg: solverCfg, numRuns: numRuns, seedStart: seedStart}
}

// WithMetrics installs a constructor for per-member metrics.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.metrics = fn
	return e
}

// WithWorkers bounds the number of members running at once. Zero is unbounded.
func (e *Ensemble) WithWorkers(n int) *Ensemble {
	e.workers = n
	return e
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			w, err := e.build(e.seedStart + int64(idx))
			if err != nil {
				return err
			}
			// members already run in parallel, so each solver stays inline
			s := New(w, solver.New(e.solverCfg, solver.WithWorkers(1)))
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			res, err := s.Run(ctx, cfg)
			results[idx] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
