package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/sim"
)

// Scenario builds a world from the scene section of a config.
type Scenario struct {
	Name        string
	Description string
	Build       func(cfg *config.Config) (*sim.World, error)
}

type Registry struct {
	scenarios map[string]Scenario
}

func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]Scenario)}

	r.Register(Scenario{"slider", "two bodies held apart by a linear axis joint", buildSlider})
	r.Register(Scenario{"prismatic", "a block sliding on a prismatic joint with limit and motor", buildPrismatic})
	r.Register(Scenario{"hinge", "a revolute pendulum", buildHinge})
	r.Register(Scenario{"grab", "a block dragged by a soft grab joint", buildGrab})
	r.Register(Scenario{"chain", "a hanging chain of revolute links", buildChain})
	r.Register(Scenario{"custom", "a bead held on a ring by authored rows", buildCustom})
	r.Register(Scenario{"rest", "a box dropped onto a ground plane", buildRest})

	return r
}

// Register adds or replaces a scenario.
func (r *Registry) Register(s Scenario) {
	r.scenarios[s.Name] = s
}

func (r *Registry) Get(name string) (Scenario, error) {
	s, ok := r.scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %s", dynamo.ErrUnknownScenario, name)
	}
	return s, nil
}

// Build looks up cfg.Scenario and builds its world.
func (r *Registry) Build(cfg *config.Config) (*sim.World, error) {
	s, err := r.Get(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	return s.Build(cfg)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
