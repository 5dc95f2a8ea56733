package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/experiment"
)

// Param is one searched dimension: a name, the values to try and how to write
// a value into a config.
type Param struct {
	Name   string
	Values []float64
	Set    func(cfg *config.Config, v float64)
}

// Params is the table of config fields the tuner knows how to sweep.
var Params = map[string]func(cfg *config.Config, v float64){
	"velocity_iterations": func(c *config.Config, v float64) { c.Solver.VelocityIterations = int(v) },
	"position_iterations": func(c *config.Config, v float64) { c.Solver.PositionIterations = int(v) },
	"warm_start_factor":   func(c *config.Config, v float64) { c.Solver.WarmStartFactor = v },
	"linear_baumgarte":    blockField(func(b *config.BlockConfig, v float64) { b.LinearBaumgarte = &v }),
	"angular_baumgarte":   blockField(func(b *config.BlockConfig, v float64) { b.AngularBaumgarte = &v }),
	"slop":                blockField(func(b *config.BlockConfig, v float64) { b.Slop = &v }),
}

// blockField applies an edit to the override block of every joint kind.
func blockField(edit func(b *config.BlockConfig, v float64)) func(*config.Config, float64) {
	return func(c *config.Config, v float64) {
		if c.Solver.Blocks == nil {
			c.Solver.Blocks = make(map[string]config.BlockConfig)
		}
		for _, kind := range []string{"linear_axis", "prismatic", "revolute", "grab", "custom"} {
			b := c.Solver.Blocks[kind]
			edit(&b, v)
			c.Solver.Blocks[kind] = b
		}
	}
}

// Lookup builds a Param for a known field name.
func Lookup(name string, values []float64) (Param, error) {
	set, ok := Params[name]
	if !ok {
		names := make([]string, 0, len(Params))
		for n := range Params {
			names = append(names, n)
		}
		sort.Strings(names)
		return Param{}, fmt.Errorf("unknown parameter %q (available: %v)", name, names)
	}
	return Param{Name: name, Values: values, Set: set}, nil
}

// Trial is the outcome of one grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	params []Param
}

func NewGridSearch(params ...Param) *GridSearch {
	return &GridSearch{params: params}
}

// Search runs every combination of parameter values on a copy of base and
// returns the trial minimizing metric, plus every trial in grid order. Trials
// that fail or produce NaN never win. Trials run one at a time, so opts may
// carry stateful metrics.
func (g *GridSearch) Search(ctx context.Context, reg *experiment.Registry, base *config.Config, metric string, opts ...experiment.Option) (*Trial, []Trial, error) {
	var trials []Trial
	best := -1

	var visit func(depth int, cfg *config.Config, current map[string]float64) error
	visit = func(depth int, cfg *config.Config, current map[string]float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth == len(g.params) {
			trial := Trial{Params: current, Value: math.Inf(1)}
			trial.Value, trial.Err = run(ctx, reg, cfg, metric, opts)
			trials = append(trials, trial)
			if trial.Err == nil && !math.IsNaN(trial.Value) && (best < 0 || trial.Value < trials[best].Value) {
				best = len(trials) - 1
			}
			return nil
		}

		p := g.params[depth]
		for _, v := range p.Values {
			next := cfg.Clone()
			p.Set(next, v)
			params := make(map[string]float64, len(current)+1)
			for k, x := range current {
				params[k] = x
			}
			params[p.Name] = v
			if err := visit(depth+1, next, params); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(0, base.Clone(), map[string]float64{}); err != nil {
		return nil, trials, err
	}
	if best < 0 {
		return nil, trials, errors.New("no trial succeeded")
	}
	return &trials[best], trials, nil
}

func run(ctx context.Context, reg *experiment.Registry, cfg *config.Config, metric string, opts []experiment.Option) (float64, error) {
	exp, err := experiment.New(reg, cfg, opts...)
	if err != nil {
		return math.Inf(1), err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return math.Inf(1), err
	}
	v, ok := result.Metrics[metric]
	if !ok {
		return math.Inf(1), fmt.Errorf("metric %q not recorded", metric)
	}
	return v, nil
}
