// Package solver implements the sequential-impulse rigid-body constraint solver.
//
// Every joint kind and contact implements [Constraint]. The solver never switches
// on the concrete kind; it drives each constraint through a fixed pipeline:
//
//	Idle -> UpdateData -> WarmStart -> SolveVelocities -> Commit -> SolvePositions -> BatchEvents -> Idle
//
// # Atoms and Molecules
//
// An [Atom] is one scalar row of a constraint and persists across steps so its
// accumulated impulse can warm start the next step. A [Molecule] is the
// solve-ready form of an atom: Jacobian, effective mass, bias and bounds. All
// molecules of a step live in one contiguous [Arena]; each constraint receives a
// [MoleculeWalker] over its own sub-slice, sized by a pre-pass summation of
// MoleculeCount.
//
// # Position Correction
//
// Drift is corrected either by biasing the velocity solve (Baumgarte) or by a
// separate position pass after velocities are committed (post-stabilization).
// The choice is resolved per constraint, first match wins:
//
//  1. the constraint's own Override block
//  2. the Config block for the constraint's Kind
//  3. Config.Correction
//
// Custom joints are the exception: they are post-stabilized exactly when they
// report position molecules.
//
// # Parallelism
//
// [SplitPhases] colours constraints so that no two in a phase share a movable
// body. Phases run in order with a full barrier; constraints inside a phase run
// concurrently through [dynamo.ParallelFor]. Static and world endpoints are read
// but never written, so they may appear in any number of constraints per phase.
package solver
