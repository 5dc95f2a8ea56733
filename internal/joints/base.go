package joints

import (
	"math"
	"math/bits"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

// Mask selects atoms by index.
type Mask uint64

// Bit returns the mask with only atom i set.
func Bit(i int) Mask { return 1 << uint(i) }

func (m Mask) Has(i int) bool { return m&Bit(i) != 0 }

func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

// Limit turns the atoms in Mask into one-sided rows once their value leaves
// [Lower, Upper]. Between the bounds the atoms are not solved.
type Limit struct {
	Lower  float64
	Upper  float64
	Mask   Mask
	Active bool
}

// Motor drives the atoms in Mask toward Speed with at most MaxImpulse per step.
type Motor struct {
	Speed      float64
	MaxImpulse float64
	Mask       Mask
	Active     bool

	impulses []float64
}

// Impulse returns the motor impulse committed for atom i last step.
func (m *Motor) Impulse(i int) float64 {
	if i < 0 || i >= len(m.impulses) {
		return 0
	}
	return m.impulses[i]
}

// Spring makes the atoms in Mask soft. Sprung atoms replace baumgarte with the
// spring's own error feedback and never take part in the position pass.
type Spring struct {
	Frequency    float64
	DampingRatio float64
	Mask         Mask
	Active       bool
}

// base carries the state and solver plumbing shared by every joint kind. Kinds
// fill values, targets and Jacobian rows in UpdateAtoms and then call refresh.
type base struct {
	kind solver.Kind
	a, b *dynamo.Body

	atoms   []solver.Atom
	rows    []solver.Jacobian
	filters []solver.AtomFilter
	targets []float64
	rowMin  []float64
	rowMax  []float64

	defaultMask  Mask
	freeMask     Mask
	positionMask Mask

	MaxImpulse  float64
	Active      bool
	SendsEvents bool
	AutoSnaps   bool

	Limit  *Limit
	Motor  *Motor
	Spring *Spring

	override *solver.Block
	snapped  bool

	emitted Mask
	lower   Mask
	upper   Mask
	sprung  Mask
	motored Mask

	stepLower Mask
	stepUpper Mask
	prevLower Mask
	prevUpper Mask
	exceeded  Mask
}

func newBase(kind solver.Kind, a, b *dynamo.Body, filters []solver.AtomFilter, defaultMask, freeMask Mask) base {
	n := len(filters)
	j := base{
		kind:         kind,
		a:            a,
		b:            b,
		atoms:        make([]solver.Atom, n),
		rows:         make([]solver.Jacobian, n),
		filters:      filters,
		targets:      make([]float64, n),
		rowMin:       make([]float64, n),
		rowMax:       make([]float64, n),
		defaultMask:  defaultMask,
		freeMask:     freeMask,
		positionMask: Mask(math.MaxUint64),
		MaxImpulse:   math.Inf(1),
		Active:       true,
	}
	for i := range j.rowMin {
		j.rowMin[i] = math.Inf(-1)
		j.rowMax[i] = math.Inf(1)
	}
	return j
}

func (j *base) Kind() solver.Kind { return j.kind }

func (j *base) Bodies() (a, b *dynamo.Body) { return j.a, j.b }

func (j *base) Override() *solver.Block { return j.override }

// SetOverride installs a per-instance configuration block. Nil removes it.
func (j *base) SetOverride(b *solver.Block) { j.override = b }

func (j *base) AtomCount() int { return len(j.atoms) }

// Atoms exposes the persistent atoms.
func (j *base) Atoms() []solver.Atom { return j.atoms }

// Valid reports whether the joint should stay in the simulation. Snapped joints
// and joints touching a destroyed body are invalid.
func (j *base) Valid() bool {
	return !j.snapped && j.a.Valid() && j.b.Valid()
}

// Snapped reports whether the joint broke by exceeding its max impulse.
func (j *base) Snapped() bool { return j.snapped }

func (j *base) live() bool { return j.Active && j.Valid() }

// SetLimit enables a limit on the kind's free atoms.
func (j *base) SetLimit(lower, upper float64) {
	j.Limit = &Limit{Lower: lower, Upper: upper, Mask: j.freeMask, Active: true}
}

// SetMotor enables a motor on the kind's free atoms.
func (j *base) SetMotor(speed, maxImpulse float64) {
	j.Motor = &Motor{Speed: speed, MaxImpulse: maxImpulse, Mask: j.freeMask, Active: true}
}

// SetSpring enables a spring on the kind's free atoms.
func (j *base) SetSpring(frequency, dampingRatio float64) {
	j.Spring = &Spring{Frequency: frequency, DampingRatio: dampingRatio, Mask: j.freeMask, Active: true}
}

// SetBreakable caps every atom at maxImpulse and snaps the joint, with events,
// once an atom reaches it.
func (j *base) SetBreakable(maxImpulse float64) {
	j.MaxImpulse = maxImpulse
	j.AutoSnaps = true
	j.SendsEvents = true
}

// refresh derives errors, bounds and the emitted masks from atom values.
func (j *base) refresh() {
	j.emitted, j.lower, j.upper, j.sprung, j.motored = 0, 0, 0, 0, 0
	if !j.live() {
		return
	}

	var limitMask, springMask, motorMask Mask
	if j.Limit != nil && j.Limit.Active {
		limitMask = j.Limit.Mask
	}
	if j.Spring != nil && j.Spring.Active {
		springMask = j.Spring.Mask
	}
	if j.Motor != nil && j.Motor.Active {
		motorMask = j.Motor.Mask
	}

	for i := range j.atoms {
		atom := &j.atoms[i]
		lo := math.Max(j.rowMin[i], -j.MaxImpulse)
		hi := math.Min(j.rowMax[i], j.MaxImpulse)
		atom.MinImpulse, atom.MaxImpulse = lo, hi
		atom.Error = atom.Value - j.targets[i]

		engaged := false
		if limitMask.Has(i) {
			switch {
			case atom.Value < j.Limit.Lower:
				atom.Error = atom.Value - j.Limit.Lower
				atom.MinImpulse, atom.MaxImpulse = 0, hi
				j.lower |= Bit(i)
				engaged = true
			case atom.Value > j.Limit.Upper:
				atom.Error = atom.Value - j.Limit.Upper
				atom.MinImpulse, atom.MaxImpulse = lo, 0
				j.upper |= Bit(i)
				engaged = true
			}
		}

		switch {
		case engaged:
			j.emitted |= Bit(i)
		case springMask.Has(i):
			j.emitted |= Bit(i)
			j.sprung |= Bit(i)
		case j.defaultMask.Has(i) && !limitMask.Has(i):
			j.emitted |= Bit(i)
		}
		if motorMask.Has(i) {
			j.motored |= Bit(i)
		}
		if !j.emitted.Has(i) {
			atom.Impulse, atom.Error = 0, 0
		}
	}
}

// applySlop shrinks a limit error toward zero by slop. Only limited atoms get slop.
func (j *base) applySlop(i int, err, slop float64) float64 {
	switch {
	case j.lower.Has(i):
		return math.Min(0, err+slop)
	case j.upper.Has(i):
		return math.Max(0, err-slop)
	}
	return err
}

func (j *base) MoleculeCount() int {
	return j.emitted.Count() + j.motored.Count()
}

func (j *base) ComputeMolecules(w *solver.MoleculeWalker, p *solver.StepParams) {
	j.stepLower, j.stepUpper = j.lower, j.upper
	j.exceeded = 0
	if j.emitted == 0 && j.motored == 0 {
		return
	}
	pol := p.Policy(j)

	for i := range j.atoms {
		if j.motored.Has(i) {
			m := w.Next()
			m.Reset(solver.NoAtom)
			m.Jacobian = j.rows[i]
			solver.ComputeMass(j.a, j.b, m)
			m.Bias = -j.Motor.Speed
			m.MinImpulse, m.MaxImpulse = -j.Motor.MaxImpulse, j.Motor.MaxImpulse
			m.Impulse = clampImpulse(j.Motor.Impulse(i)*p.WarmStartFactor, m)
		}
		if !j.emitted.Has(i) {
			continue
		}

		atom := &j.atoms[i]
		m := w.Next()
		m.Reset(i)
		m.Jacobian = j.rows[i]
		solver.ComputeMass(j.a, j.b, m)
		m.MinImpulse, m.MaxImpulse = atom.MinImpulse, atom.MaxImpulse
		m.Error = j.applySlop(i, atom.Error, pol.Block.Slop)

		factor, ok := pol.Factor(j.filters[i])
		switch {
		case !ok:
			m.Mass = 0
		case j.sprung.Has(i):
			solver.SoftenMolecule(m, j.Spring.Frequency, j.Spring.DampingRatio, p.Dt)
		case pol.PostStabilize && j.positionMask.Has(i):
			// drift left to the position pass
		case p.Dt > 0:
			m.Bias = factor * m.Error / p.Dt
		}
		atom.Bias = m.Bias
		m.Impulse = clampImpulse(atom.Impulse*p.WarmStartFactor, m)
	}
}

func clampImpulse(v float64, m *solver.Molecule) float64 {
	return math.Max(m.MinImpulse, math.Min(m.MaxImpulse, v))
}

func (j *base) WarmStart(w *solver.MoleculeWalker) {
	for n := j.MoleculeCount(); n > 0; n-- {
		solver.WarmStartFragment(j.a, j.b, w.Next())
	}
}

func (j *base) Solve(w *solver.MoleculeWalker) {
	for n := j.MoleculeCount(); n > 0; n-- {
		solver.SolveFragment(j.a, j.b, w.Next())
	}
}

func (j *base) Commit(w *solver.MoleculeWalker) {
	for i := range j.atoms {
		if j.motored.Has(i) {
			m := w.Next()
			if len(j.Motor.impulses) != len(j.atoms) {
				j.Motor.impulses = make([]float64, len(j.atoms))
			}
			j.Motor.impulses[i] = m.Impulse
		}
		if !j.emitted.Has(i) {
			continue
		}
		m := w.Next()
		solver.CommitFragment(m, &j.atoms[i])
		if !math.IsInf(j.MaxImpulse, 1) && math.Abs(m.Impulse) >= j.MaxImpulse {
			j.exceeded |= Bit(i)
		}
	}
}

// positional reports whether atom i is corrected in the position pass.
func (j *base) positional(i int) bool {
	return j.emitted.Has(i) && !j.sprung.Has(i) && j.positionMask.Has(i)
}

func (j *base) PositionMoleculeCount() int {
	n := 0
	for i := range j.atoms {
		if j.positional(i) {
			n++
		}
	}
	return n
}

func (j *base) ComputePositionMolecules(w *solver.MoleculeWalker, p *solver.StepParams) {
	if j.PositionMoleculeCount() == 0 {
		return
	}
	pol := p.Policy(j)
	for i := range j.atoms {
		if !j.positional(i) {
			continue
		}
		atom := &j.atoms[i]
		m := w.Next()
		m.Reset(i)
		m.Jacobian = j.rows[i]
		solver.ComputeMass(j.a, j.b, m)
		m.MinImpulse, m.MaxImpulse = atom.MinImpulse, atom.MaxImpulse
		m.Error = j.applySlop(i, atom.Error, pol.Block.Slop)
		if _, ok := pol.Factor(j.filters[i]); !ok {
			m.Mass = 0
		}
		m.ErrorCorrection = pol.ErrorCap(j.filters[i])
	}
}

func (j *base) BatchEvents(sink solver.EventSink) {
	if j.SendsEvents {
		for i := range j.atoms {
			if j.stepLower.Has(i) && !j.prevLower.Has(i) {
				sink.Emit(solver.Event{Kind: solver.EventLowerLimitReached, Atom: i})
			}
			if j.stepUpper.Has(i) && !j.prevUpper.Has(i) {
				sink.Emit(solver.Event{Kind: solver.EventUpperLimitReached, Atom: i})
			}
			if j.exceeded.Has(i) {
				sink.Emit(solver.Event{Kind: solver.EventExceedImpulseLimit, Atom: i, Impulse: j.atoms[i].Impulse})
			}
		}
	}
	j.prevLower, j.prevUpper = j.stepLower, j.stepUpper

	if j.exceeded != 0 && j.AutoSnaps && !j.snapped {
		j.snapped = true
		sink.Emit(solver.Event{Kind: solver.EventSnapped, Atom: bits.TrailingZeros64(uint64(j.exceeded))})
	}
}
