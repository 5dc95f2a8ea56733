// Package joints provides the joint kinds plugged into the constraint solver.
//
// Every kind embeds the same base, which owns the persistent atoms and turns them
// into molecules. A kind only measures its geometry in UpdateAtoms: atom values,
// targets and Jacobian rows.
//
// Available kinds:
//
//   - [LinearAxisJoint]: one row, separation along an axis
//   - [PrismaticJoint]: slide along an axis, everything else locked
//   - [RevoluteJoint]: hinge, free about one axis
//   - [GrabJoint]: soft 6-DOF drag toward a world target
//   - [CustomJoint]: authored rows, at most 64
//
// # Sub-components
//
// A [Limit] makes atoms one-sided outside [Lower, Upper] and reports edge-triggered
// limit events. A [Motor] adds a velocity-target molecule ahead of the atom's own.
// A [Spring] softens atoms using frequency and damping ratio.
//
//	hinge := joints.NewRevolute(nil, door, pivot, mgl64.Vec3{0, 1, 0})
//	hinge.SetLimit(-math.Pi/2, math.Pi/2)
//	hinge.SendsEvents = true
//
// Joints with a finite MaxImpulse and AutoSnaps set break once an atom's impulse
// reaches the limit; Valid then returns false and the owner removes them.
package joints
