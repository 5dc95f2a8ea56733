package solver

import "fmt"

// EventKind identifies a deferred joint notification.
type EventKind int

const (
	EventExceedImpulseLimit EventKind = iota
	EventSnapped
	EventLowerLimitReached
	EventUpperLimitReached
)

func (k EventKind) String() string {
	switch k {
	case EventExceedImpulseLimit:
		return "exceed_impulse_limit"
	case EventSnapped:
		return "snapped"
	case EventLowerLimitReached:
		return "lower_limit_reached"
	case EventUpperLimitReached:
		return "upper_limit_reached"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is dispatched once per step after every constraint has committed.
type Event struct {
	Kind EventKind
	// Constraint and Index are filled in by the solver.
	Constraint Constraint
	Index      int
	Atom       int
	Impulse    float64
}

// EventSink receives events from Constraint.BatchEvents.
type EventSink interface {
	Emit(e Event)
}

// EventListener receives the step's events after BatchEvents.
type EventListener interface {
	OnEvent(e Event)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(e Event)

func (f EventListenerFunc) OnEvent(e Event) { f(e) }

type eventBatch struct {
	current Constraint
	index   int
	events  []Event
}

func (b *eventBatch) Emit(e Event) {
	e.Constraint = b.current
	e.Index = b.index
	b.events = append(b.events, e)
}
