package solver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/san-kum/jointsim/internal/dynamo"
)

// Kind identifies a constraint class. It keys the per-kind configuration block.
type Kind int

const (
	KindLinearAxis Kind = iota
	KindPrismatic
	KindRevolute
	KindGrab
	KindCustom
	KindContact
	kindCount
)

var kindNames = [...]string{
	KindLinearAxis: "linear_axis",
	KindPrismatic:  "prismatic",
	KindRevolute:   "revolute",
	KindGrab:       "grab",
	KindCustom:     "custom",
	KindContact:    "contact",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown constraint kind %q", dynamo.ErrInvalidConfig, s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Constraint is the capability set every joint kind and contact implements.
//
// Each call that takes a walker must draw exactly as many molecules as the
// matching count method reported; the solver panics with a
// *CountMismatchError otherwise.
type Constraint interface {
	Kind() Kind
	// Bodies returns both endpoints. A nil body is the world.
	Bodies() (a, b *dynamo.Body)
	// Override returns the per-instance configuration block, or nil.
	Override() *Block

	AtomCount() int
	// UpdateAtoms recomputes atom values, errors and bounds from body state.
	UpdateAtoms()

	MoleculeCount() int
	ComputeMolecules(w *MoleculeWalker, p *StepParams)
	WarmStart(w *MoleculeWalker)
	Solve(w *MoleculeWalker)
	Commit(w *MoleculeWalker)

	PositionMoleculeCount() int
	ComputePositionMolecules(w *MoleculeWalker, p *StepParams)

	// BatchEvents reports notifications accumulated during the step.
	BatchEvents(sink EventSink)
}

// StepParams is passed to molecule computation.
type StepParams struct {
	Dt              float64
	Config          *Config
	WarmStartFactor float64
	Logger          *slog.Logger
}

// Policy resolves the correction policy for c.
func (p *StepParams) Policy(c Configurable) Policy {
	return p.Config.Resolve(c, p.Logger)
}

// Inert reports whether a constraint touches a destroyed body.
func Inert(c Constraint) bool {
	a, b := c.Bodies()
	return !a.Valid() || !b.Valid()
}
