package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

const (
	DefaultScenario = "hinge"
	DefaultDt       = 1.0 / 60
	DefaultDuration = 10.0
	DefaultLinks    = 8
	DefaultFriction = 0.5
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Config struct {
	Scenario string       `yaml:"scenario" validate:"required"`
	Dt       float64      `yaml:"dt" validate:"gt=0,lte=1"`
	Duration float64      `yaml:"duration" validate:"gt=0"`
	Seed     int64        `yaml:"seed"`
	Gravity  [3]float64   `yaml:"gravity,flow"`
	Scene    SceneConfig  `yaml:"scene"`
	Solver   SolverConfig `yaml:"solver"`
}

// SceneConfig holds the knobs scenarios read. Each scenario ignores the ones it
// has no use for.
type SceneConfig struct {
	Links       int     `yaml:"links" validate:"gte=1,lte=4096"`
	Offset      float64 `yaml:"offset"`
	Speed       float64 `yaml:"speed"`
	Friction    float64 `yaml:"friction" validate:"gte=0"`
	Restitution float64 `yaml:"restitution" validate:"gte=0,lte=1"`
	Limit       float64 `yaml:"limit" validate:"gte=0"`
	// MaxImpulse of zero leaves joints unbreakable.
	MaxImpulse float64 `yaml:"max_impulse" validate:"gte=0"`
}

type SolverConfig struct {
	VelocityIterations   int                    `yaml:"velocity_iterations" validate:"gte=0,lte=100"`
	PositionIterations   int                    `yaml:"position_iterations" validate:"gte=0,lte=100"`
	WarmStart            bool                   `yaml:"warm_start"`
	WarmStartFactor      float64                `yaml:"warm_start_factor" validate:"gte=0,lte=1"`
	Correction           string                 `yaml:"correction" validate:"oneof=baumgarte post_stabilization"`
	RestitutionThreshold float64                `yaml:"restitution_threshold" validate:"gte=0"`
	Workers              int                    `yaml:"workers" validate:"gte=0"`
	Blocks               map[string]BlockConfig `yaml:"blocks,omitempty" validate:"dive,keys,oneof=linear_axis prismatic revolute grab custom contact,endkeys"`
}

// BlockConfig overrides part of a kind's defaults. Unset fields keep the
// built-in value.
type BlockConfig struct {
	Slop                   *float64 `yaml:"slop,omitempty" validate:"omitempty,gte=0"`
	LinearBaumgarte        *float64 `yaml:"linear_baumgarte,omitempty" validate:"omitempty,gte=0,lte=1"`
	AngularBaumgarte       *float64 `yaml:"angular_baumgarte,omitempty" validate:"omitempty,gte=0,lte=1"`
	LinearErrorCorrection  *float64 `yaml:"linear_error_correction,omitempty" validate:"omitempty,gte=0"`
	AngularErrorCorrection *float64 `yaml:"angular_error_correction,omitempty" validate:"omitempty,gte=0"`
	Correction             string   `yaml:"correction,omitempty" validate:"omitempty,oneof=inherit baumgarte post_stabilization"`
}

func DefaultConfig() *Config {
	sc := solver.DefaultConfig()
	return &Config{
		Scenario: DefaultScenario,
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Gravity:  [3]float64{0, -9.81, 0},
		Scene: SceneConfig{
			Links:    DefaultLinks,
			Friction: DefaultFriction,
		},
		Solver: SolverConfig{
			VelocityIterations:   sc.VelocityIterations,
			PositionIterations:   sc.PositionIterations,
			WarmStart:            sc.WarmStart,
			WarmStartFactor:      sc.WarmStartFactor,
			Correction:           sc.Correction.String(),
			RestitutionThreshold: sc.RestitutionThreshold,
			Workers:              sc.Workers,
		},
	}
}

// Load reads a YAML file on top of DefaultConfig and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Solver.Blocks != nil {
		cp.Solver.Blocks = make(map[string]BlockConfig, len(c.Solver.Blocks))
		for k, v := range c.Solver.Blocks {
			cp.Solver.Blocks[k] = v
		}
	}
	return &cp
}

// ToSolver converts the solver section into a solver configuration, applying
// block overrides on top of each kind's defaults.
func (c *Config) ToSolver() (*solver.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := c.Solver
	out := solver.DefaultConfig()
	out.VelocityIterations = s.VelocityIterations
	out.PositionIterations = s.PositionIterations
	out.WarmStart = s.WarmStart
	out.WarmStartFactor = s.WarmStartFactor
	out.RestitutionThreshold = s.RestitutionThreshold
	out.Workers = s.Workers

	corr, err := solver.ParseCorrection(s.Correction)
	if err != nil {
		return nil, err
	}
	out.Correction = corr

	for name, bc := range s.Blocks {
		kind, err := solver.ParseKind(name)
		if err != nil {
			return nil, err
		}
		b, err := bc.apply(out.Blocks[kind])
		if err != nil {
			return nil, err
		}
		out.Blocks[kind] = b
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (bc BlockConfig) apply(b solver.Block) (solver.Block, error) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&b.Slop, bc.Slop)
	set(&b.LinearBaumgarte, bc.LinearBaumgarte)
	set(&b.AngularBaumgarte, bc.AngularBaumgarte)
	set(&b.LinearErrorCorrection, bc.LinearErrorCorrection)
	set(&b.AngularErrorCorrection, bc.AngularErrorCorrection)
	if bc.Correction != "" {
		corr, err := solver.ParseCorrection(bc.Correction)
		if err != nil {
			return b, err
		}
		b.Correction = corr
	}
	return b, nil
}

// BlockFrom describes a full solver block, used to print the effective defaults.
func BlockFrom(b solver.Block) BlockConfig {
	f := func(v float64) *float64 { return &v }
	return BlockConfig{
		Slop:                   f(b.Slop),
		LinearBaumgarte:        f(b.LinearBaumgarte),
		AngularBaumgarte:       f(b.AngularBaumgarte),
		LinearErrorCorrection:  f(b.LinearErrorCorrection),
		AngularErrorCorrection: f(b.AngularErrorCorrection),
		Correction:             b.Correction.String(),
	}
}

// WithBlocks returns a copy of c whose Blocks list every kind's effective
// values.
func (c *Config) WithBlocks() (*Config, error) {
	sc, err := c.ToSolver()
	if err != nil {
		return nil, err
	}
	cp := c.Clone()
	cp.Solver.Blocks = make(map[string]BlockConfig, len(sc.Blocks))
	for _, k := range solver.Kinds() {
		cp.Solver.Blocks[k.String()] = BlockFrom(sc.BlockFor(k))
	}
	return cp, nil
}

