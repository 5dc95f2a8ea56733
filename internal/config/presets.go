package config

import "sort"

func preset(scenario string, duration float64, edit func(c *Config)) *Config {
	c := DefaultConfig()
	c.Scenario = scenario
	c.Duration = duration
	if edit != nil {
		edit(c)
	}
	return c
}

func ptr(v float64) *float64 { return &v }

var Presets = map[string]map[string]*Config{
	"slider": {
		"baumgarte": preset("slider", 5, func(c *Config) {
			c.Scene.Offset = 1
			c.Gravity = [3]float64{}
		}),
		"post": preset("slider", 5, func(c *Config) {
			c.Scene.Offset = 1
			c.Gravity = [3]float64{}
			c.Solver.Correction = "post_stabilization"
		}),
		"stiff": preset("slider", 5, func(c *Config) {
			c.Scene.Offset = 1
			c.Gravity = [3]float64{}
			c.Solver.Blocks = map[string]BlockConfig{
				"linear_axis": {LinearBaumgarte: ptr(0.8)},
			}
		}),
	},
	"prismatic": {
		"limited": preset("prismatic", 5, func(c *Config) {
			c.Scene.Limit = 0.5
			c.Scene.Speed = 2
		}),
		"motor": preset("prismatic", 5, func(c *Config) {
			c.Scene.Speed = 1
			c.Gravity = [3]float64{}
		}),
	},
	"hinge": {
		"small": preset("hinge", 10, func(c *Config) {
			c.Scene.Offset = 0.2
		}),
		"large": preset("hinge", 10, func(c *Config) {
			c.Scene.Offset = 2.5
		}),
		"limited": preset("hinge", 10, func(c *Config) {
			c.Scene.Offset = 1.5
			c.Scene.Limit = 0.5
		}),
	},
	"grab": {
		"drag": preset("grab", 5, func(c *Config) {
			c.Scene.Offset = 2
		}),
		"breakable": preset("grab", 5, func(c *Config) {
			c.Scene.Offset = 4
			c.Scene.MaxImpulse = 2
		}),
	},
	"chain": {
		"short": preset("chain", 10, func(c *Config) {
			c.Scene.Links = 8
		}),
		"long": preset("chain", 10, func(c *Config) {
			c.Scene.Links = 64
			c.Solver.VelocityIterations = 20
		}),
		"breaking": preset("chain", 10, func(c *Config) {
			c.Scene.Links = 16
			c.Scene.MaxImpulse = 1.5
		}),
	},
	"custom": {
		"pin": preset("custom", 5, func(c *Config) {
			c.Scene.Offset = 1
		}),
	},
	"rest": {
		"stack": preset("rest", 5, nil),
		"bounce": preset("rest", 5, func(c *Config) {
			c.Scene.Offset = 2
			c.Scene.Restitution = 0.6
		}),
		"slide": preset("rest", 5, func(c *Config) {
			c.Scene.Speed = 4
			c.Scene.Friction = 0.3
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(scenario, name string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	cfg, ok := scenarioPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
