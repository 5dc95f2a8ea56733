package solver

import "sync"

// Arena is the step-scoped molecule storage.
type Arena struct {
	molecules []Molecule
}

var arenaPool = sync.Pool{
	New: func() any { return &Arena{} },
}

// getArena returns an arena holding exactly n molecules.
func getArena(n int) *Arena {
	a := arenaPool.Get().(*Arena)
	if cap(a.molecules) < n {
		a.molecules = make([]Molecule, n)
	}
	a.molecules = a.molecules[:n]
	return a
}

func putArena(a *Arena) {
	if a == nil {
		return
	}
	a.molecules = a.molecules[:0]
	arenaPool.Put(a)
}

// Len returns the number of molecules in the arena.
func (a *Arena) Len() int { return len(a.molecules) }

// Walker returns a walker over molecules [offset, offset+n).
func (a *Arena) Walker(offset, n int) MoleculeWalker {
	return MoleculeWalker{molecules: a.molecules[offset : offset+n : offset+n]}
}

// MoleculeWalker hands out the molecules reserved for one constraint in order.
// Requesting more than were reserved is a count-symmetry violation.
type MoleculeWalker struct {
	molecules []Molecule
	pos       int
}

// NewWalker wraps an existing molecule slice. Used by tests and by callers
// driving a single constraint outside of a solver step.
func NewWalker(molecules []Molecule) *MoleculeWalker {
	return &MoleculeWalker{molecules: molecules}
}

// Next returns the next molecule.
func (w *MoleculeWalker) Next() *Molecule {
	if w.pos >= len(w.molecules) {
		panic(&CountMismatchError{Expected: len(w.molecules), Got: w.pos + 1})
	}
	m := &w.molecules[w.pos]
	w.pos++
	return m
}

// Rewind moves the cursor back to the first molecule.
func (w *MoleculeWalker) Rewind() { w.pos = 0 }

// Used returns how many molecules have been handed out since the last rewind.
func (w *MoleculeWalker) Used() int { return w.pos }

// Cap returns the number of reserved molecules.
func (w *MoleculeWalker) Cap() int { return len(w.molecules) }

// Molecules returns the reserved slice.
func (w *MoleculeWalker) Molecules() []Molecule { return w.molecules }
