package solver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/san-kum/jointsim/internal/dynamo"
)

// Correction selects how positional drift is removed.
type Correction int

const (
	Inherit Correction = iota
	Baumgarte
	PostStabilization
)

func (c Correction) String() string {
	switch c {
	case Inherit:
		return "inherit"
	case Baumgarte:
		return "baumgarte"
	case PostStabilization:
		return "post_stabilization"
	default:
		return fmt.Sprintf("correction(%d)", int(c))
	}
}

// ParseCorrection accepts the names produced by String.
func ParseCorrection(s string) (Correction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inherit":
		return Inherit, nil
	case "baumgarte":
		return Baumgarte, nil
	case "post_stabilization", "poststabilization", "post":
		return PostStabilization, nil
	}
	return Inherit, fmt.Errorf("%w: unknown correction %q", dynamo.ErrInvalidConfig, s)
}

func (c Correction) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Correction) UnmarshalText(b []byte) error {
	v, err := ParseCorrection(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Block holds the correction parameters for one constraint kind or instance.
// Baumgarte factors are fractions of the error removed per step.
type Block struct {
	Slop                   float64
	LinearBaumgarte        float64
	AngularBaumgarte       float64
	LinearErrorCorrection  float64
	AngularErrorCorrection float64
	Correction             Correction
}

// DefaultBlock returns the block used for kind when the config has none.
func DefaultBlock(kind Kind) Block {
	b := Block{
		Slop:                   0.02,
		LinearBaumgarte:        0.2,
		AngularBaumgarte:       0.2,
		LinearErrorCorrection:  0.2,
		AngularErrorCorrection: 0.2,
		Correction:             Inherit,
	}
	switch kind {
	case KindLinearAxis:
		b.Slop = 0
	case KindPrismatic:
		b.Slop = 0.1
		b.LinearBaumgarte = 0.1
	case KindRevolute:
		b.LinearBaumgarte = 0.3
		b.AngularBaumgarte = 0.1
	case KindGrab:
		b.Correction = Baumgarte
	case KindContact:
		b.LinearBaumgarte = 0.3
	}
	return b
}

func (b *Block) sanitize(name string, logger *slog.Logger) {
	if b.Slop < 0 {
		logger.Warn("slop cannot be negative, clamping to 0", "block", name, "value", b.Slop)
		b.Slop = 0
	}
	b.LinearBaumgarte = clampFactor(b.LinearBaumgarte, name, "linear_baumgarte", logger)
	b.AngularBaumgarte = clampFactor(b.AngularBaumgarte, name, "angular_baumgarte", logger)
	if b.LinearErrorCorrection < 0 {
		logger.Warn("linear error correction must be positive, clamping to 0", "block", name, "value", b.LinearErrorCorrection)
		b.LinearErrorCorrection = 0
	}
	if b.AngularErrorCorrection < 0 {
		logger.Warn("angular error correction must be positive, clamping to 0", "block", name, "value", b.AngularErrorCorrection)
		b.AngularErrorCorrection = 0
	}
	if b.Correction < Inherit || b.Correction > PostStabilization {
		logger.Warn("invalid correction, using inherit", "block", name, "value", int(b.Correction))
		b.Correction = Inherit
	}
}

// Baumgarte factors live in (0, 1]. A zero factor means no drift correction
// and is allowed.
func clampFactor(v float64, block, field string, logger *slog.Logger) float64 {
	if v < 0 {
		logger.Warn("baumgarte factor must be positive, clamping", "block", block, "field", field, "value", v)
		return 0
	}
	if v > 1 {
		logger.Warn("baumgarte factor above 1 is unstable, clamping", "block", block, "field", field, "value", v)
		return 1
	}
	return v
}

const maxIterations = 100

// Config is the explicit solver configuration passed to every step.
type Config struct {
	VelocityIterations int
	PositionIterations int
	WarmStart          bool
	WarmStartFactor    float64
	// Correction is the solver-wide default. It must not be Inherit.
	Correction Correction
	Blocks     map[Kind]Block
	// RestitutionThreshold is the approach speed below which contacts do
	// not bounce.
	RestitutionThreshold float64
	Workers              int
}

// DefaultConfig returns a config with every kind block populated.
func DefaultConfig() *Config {
	cfg := &Config{
		VelocityIterations:   10,
		PositionIterations:   3,
		WarmStart:            true,
		WarmStartFactor:      1,
		Correction:           Baumgarte,
		Blocks:               make(map[Kind]Block, int(kindCount)),
		RestitutionThreshold: 1,
	}
	for _, k := range Kinds() {
		cfg.Blocks[k] = DefaultBlock(k)
	}
	return cfg
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Blocks = make(map[Kind]Block, len(c.Blocks))
	for k, b := range c.Blocks {
		out.Blocks[k] = b
	}
	return &out
}

// Sanitize clamps every out-of-range value, logging a warning per clamp.
func (c *Config) Sanitize(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c.VelocityIterations = clampIterations(c.VelocityIterations, "velocity_iterations", logger)
	c.PositionIterations = clampIterations(c.PositionIterations, "position_iterations", logger)
	if c.WarmStartFactor < 0 || c.WarmStartFactor > 1 {
		logger.Warn("warm start factor must be in [0, 1], clamping", "value", c.WarmStartFactor)
		c.WarmStartFactor = clamp(c.WarmStartFactor, 0, 1)
	}
	if c.Correction != Baumgarte && c.Correction != PostStabilization {
		logger.Warn("global correction must be baumgarte or post_stabilization, using baumgarte", "value", c.Correction)
		c.Correction = Baumgarte
	}
	if c.RestitutionThreshold < 0 {
		logger.Warn("restitution threshold must be positive, clamping to 0", "value", c.RestitutionThreshold)
		c.RestitutionThreshold = 0
	}
	if c.Blocks == nil {
		c.Blocks = make(map[Kind]Block)
	}
	for k, b := range c.Blocks {
		b.sanitize(k.String(), logger)
		if k == KindGrab && b.Correction != Baumgarte {
			logger.Warn("grab joints are velocity driven and must use baumgarte", "value", b.Correction)
			b.Correction = Baumgarte
		}
		c.Blocks[k] = b
	}
}

func clampIterations(n int, field string, logger *slog.Logger) int {
	if n < 0 || n > maxIterations {
		logger.Warn("iteration count must be in [0, 100], clamping", "field", field, "value", n)
		if n < 0 {
			return 0
		}
		return maxIterations
	}
	return n
}

// Validate reports whether the config is usable without clamping.
func (c *Config) Validate() error {
	if c.VelocityIterations < 0 || c.VelocityIterations > maxIterations {
		return fmt.Errorf("%w: velocity iterations %d outside [0, %d]", dynamo.ErrInvalidConfig, c.VelocityIterations, maxIterations)
	}
	if c.PositionIterations < 0 || c.PositionIterations > maxIterations {
		return fmt.Errorf("%w: position iterations %d outside [0, %d]", dynamo.ErrInvalidConfig, c.PositionIterations, maxIterations)
	}
	if c.Correction == Inherit {
		return fmt.Errorf("%w: global correction cannot be inherit", dynamo.ErrInvalidConfig)
	}
	return nil
}

// BlockFor returns the configured block for kind, or its default.
func (c *Config) BlockFor(kind Kind) Block {
	if b, ok := c.Blocks[kind]; ok {
		return b
	}
	return DefaultBlock(kind)
}

// Configurable is the part of a constraint the policy lookup needs.
type Configurable interface {
	Kind() Kind
	Override() *Block
	PositionMoleculeCount() int
}

// Resolve applies the override -> kind -> global lookup for c.
func (c *Config) Resolve(con Configurable, logger *slog.Logger) Policy {
	block := c.BlockFor(con.Kind())
	mode := block.Correction
	if o := con.Override(); o != nil {
		block = *o
		if o.Correction != Inherit {
			mode = o.Correction
		}
	}
	if mode == Inherit {
		mode = c.Correction
	}
	p := Policy{Block: block, logger: logger}
	if con.Kind() == KindCustom {
		p.PostStabilize = con.PositionMoleculeCount() > 0
	} else {
		p.PostStabilize = mode == PostStabilization
	}
	return p
}

// ShouldSolvePosition reports whether c takes part in the position pass.
func (c *Config) ShouldSolvePosition(con Configurable) bool {
	return c.Resolve(con, nil).PostStabilize
}

// Policy is the resolved correction policy of one constraint for one step.
type Policy struct {
	Block         Block
	PostStabilize bool
	logger        *slog.Logger
}

// Factor returns the baumgarte factor for an atom filter. The second result is
// false for an unrecognized filter, in which case the atom must contribute
// nothing.
func (p Policy) Factor(f AtomFilter) (float64, bool) {
	switch f {
	case LinearAxis:
		return p.Block.LinearBaumgarte, true
	case AngularAxis:
		return p.Block.AngularBaumgarte, true
	}
	if p.logger != nil {
		p.logger.Warn("unrecognized atom filter, atom ignored", "filter", int(f))
	}
	return 0, false
}

// Bias returns the velocity bias for an error under this policy. It is zero
// when the constraint is post-stabilized.
func (p Policy) Bias(f AtomFilter, err, dt float64) float64 {
	if p.PostStabilize || dt <= 0 {
		return 0
	}
	factor, _ := p.Factor(f)
	return factor * err / dt
}

// ErrorCap returns the maximum error removed per position iteration.
func (p Policy) ErrorCap(f AtomFilter) float64 {
	if f == AngularAxis {
		return p.Block.AngularErrorCorrection
	}
	return p.Block.LinearErrorCorrection
}
