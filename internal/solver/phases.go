package solver

import "github.com/san-kum/jointsim/internal/dynamo"

// Phases partitions a constraint list. Lists[p] holds indices into the input
// list in input order; Of[i] is the phase of constraint i.
type Phases struct {
	Lists [][]int
	Of    []int
}

// Len returns the number of phases.
func (p Phases) Len() int { return len(p.Lists) }

// Filter keeps only the constraints for which keep returns true. The result
// preserves phase membership, so body disjointness still holds.
func (p Phases) Filter(keep func(i int) bool) Phases {
	out := Phases{Of: make([]int, len(p.Of))}
	for i := range out.Of {
		out.Of[i] = -1
	}
	for _, list := range p.Lists {
		var kept []int
		for _, i := range list {
			if keep(i) {
				kept = append(kept, i)
			}
		}
		if len(kept) == 0 {
			continue
		}
		for _, i := range kept {
			out.Of[i] = len(out.Lists)
		}
		out.Lists = append(out.Lists, kept)
	}
	return out
}

// SplitPhases greedily colours constraints so that no two constraints in the
// same phase share a movable body. Constraints are scanned in list order and
// placed in the first phase that accepts them, so the split is deterministic.
func SplitPhases(constraints []Constraint) Phases {
	out := Phases{Of: make([]int, len(constraints))}
	var used []map[*dynamo.Body]struct{}

	for i, c := range constraints {
		a, b := c.Bodies()
		if !a.Movable() {
			a = nil
		}
		if !b.Movable() {
			b = nil
		}

		phase := -1
		for p, set := range used {
			if a != nil {
				if _, ok := set[a]; ok {
					continue
				}
			}
			if b != nil {
				if _, ok := set[b]; ok {
					continue
				}
			}
			phase = p
			break
		}
		if phase < 0 {
			phase = len(used)
			used = append(used, make(map[*dynamo.Body]struct{}))
			out.Lists = append(out.Lists, nil)
		}

		if a != nil {
			used[phase][a] = struct{}{}
		}
		if b != nil {
			used[phase][b] = struct{}{}
		}
		out.Lists[phase] = append(out.Lists[phase], i)
		out.Of[i] = phase
	}
	return out
}
