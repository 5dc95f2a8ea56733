package joints

import (
	"math"

	"github.com/san-kum/jointsim/internal/dynamo"
	"github.com/san-kum/jointsim/internal/solver"
)

// CustomRow is one authored constraint row. Jacobian and Error are in world
// space and are usually rewritten every step by CustomJoint.Update.
type CustomRow struct {
	Jacobian solver.Jacobian
	Error    float64
	Filter   solver.AtomFilter
	// MinImpulse and MaxImpulse bound the row. Both zero means unbounded.
	MinImpulse    float64
	MaxImpulse    float64
	SolvePosition bool
}

// CustomJoint is built entirely from authored rows. It takes part in the
// position pass exactly when one of its active rows asks to.
type CustomJoint struct {
	base

	Rows []CustomRow
	// Update runs at the start of every UpdateAtoms call.
	Update func(j *CustomJoint)
}

func NewCustom(a, b *dynamo.Body, rows ...CustomRow) *CustomJoint {
	j := &CustomJoint{Rows: rows}
	j.base = newBase(solver.KindCustom, a, b, make([]solver.AtomFilter, len(rows)), 0, 0)
	return j
}

// resize keeps the persistent impulses of surviving rows.
func (j *CustomJoint) resize(n int) {
	if len(j.atoms) == n {
		return
	}
	atoms := make([]solver.Atom, n)
	copy(atoms, j.atoms)
	j.atoms = atoms
	j.rows = make([]solver.Jacobian, n)
	j.filters = make([]solver.AtomFilter, n)
	j.targets = make([]float64, n)
	j.rowMin = make([]float64, n)
	j.rowMax = make([]float64, n)
}

func (j *CustomJoint) UpdateAtoms() {
	if j.Update != nil {
		j.Update(j)
	}
	j.resize(len(j.Rows))

	j.defaultMask, j.positionMask = 0, 0
	for i, r := range j.Rows {
		j.atoms[i].Value = r.Error
		j.targets[i] = 0
		j.rows[i] = r.Jacobian
		j.filters[i] = r.Filter
		if r.MinImpulse == 0 && r.MaxImpulse == 0 {
			j.rowMin[i], j.rowMax[i] = math.Inf(-1), math.Inf(1)
		} else {
			j.rowMin[i], j.rowMax[i] = r.MinImpulse, r.MaxImpulse
		}
		j.defaultMask |= Bit(i)
		if r.SolvePosition {
			j.positionMask |= Bit(i)
		}
	}
	j.freeMask = j.defaultMask
	j.refresh()
}
