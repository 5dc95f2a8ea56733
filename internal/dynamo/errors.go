package dynamo

import "errors"

// Domain errors for simulation and solver operations.
var (
	// ErrInvalidState indicates a body with NaN or Inf velocity or position.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrInvalidBody indicates a constraint referencing a destroyed body.
	ErrInvalidBody = errors.New("dynamo: constraint references a destroyed body")

	// ErrCountMismatch indicates a constraint produced or consumed a different
	// number of molecules than it reported. This is a programming fault.
	ErrCountMismatch = errors.New("dynamo: molecule count mismatch")

	// ErrStageOrder indicates the solver pipeline was driven out of order.
	ErrStageOrder = errors.New("dynamo: solver stage out of order")

	// ErrUnknownScenario indicates a scenario name missing from the registry.
	ErrUnknownScenario = errors.New("dynamo: unknown scenario")

	// ErrContextCanceled indicates the simulation was interrupted between steps.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return e.Wrapped.Error()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
