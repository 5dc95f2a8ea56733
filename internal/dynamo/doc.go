// Package dynamo provides the rigid-body primitives shared by the solver and the
// owning simulation.
//
// The package defines the state the constraint solver reads and mutates but does
// not own:
//
//   - [Body]: position, orientation, velocities, inverse mass and inertia
//   - [Endpoint helpers]: a nil *Body is the immovable world endpoint
//   - [ParallelFor]: bounded fan-out used to process independent constraints
//
// # World Endpoint
//
// Constraints reference exactly two endpoints. Either may be nil, meaning the
// world: infinite mass, zero velocity, identity transform.
//
//	hinge := joints.NewRevolute(nil, door, hingePoint, mgl64.Vec3{0, 1, 0})
//
// # Thread Safety
//
// Body values are NOT synchronized. The solver guarantees that two goroutines
// never touch the same movable body at the same time by splitting constraints
// into phases; static and world endpoints are never written.
package dynamo
