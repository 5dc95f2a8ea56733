package joints

import "github.com/san-kum/jointsim/internal/solver"

// Joint is a solver constraint with a lifetime managed by its owner.
type Joint interface {
	solver.Constraint
	Valid() bool
	Snapped() bool
}

var (
	_ Joint = (*LinearAxisJoint)(nil)
	_ Joint = (*PrismaticJoint)(nil)
	_ Joint = (*RevoluteJoint)(nil)
	_ Joint = (*GrabJoint)(nil)
	_ Joint = (*CustomJoint)(nil)
)
