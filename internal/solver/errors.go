package solver

import (
	"fmt"

	"github.com/san-kum/jointsim/internal/dynamo"
)

// CountMismatchError is raised (as a panic value) when a constraint produces or
// consumes a different number of molecules than it reported.
type CountMismatchError struct {
	Constraint int
	Kind       Kind
	Stage      State
	Expected   int
	Got        int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%v: constraint %d (%s) in %s: expected %d molecules, got %d",
		dynamo.ErrCountMismatch, e.Constraint, e.Kind, e.Stage, e.Expected, e.Got)
}

func (e *CountMismatchError) Unwrap() error { return dynamo.ErrCountMismatch }

// StageError is raised when the pipeline is driven out of order.
type StageError struct {
	From State
	To   State
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", dynamo.ErrStageOrder, e.From, e.To)
}

func (e *StageError) Unwrap() error { return dynamo.ErrStageOrder }
