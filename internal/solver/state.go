package solver

import "fmt"

// State is a stage of the per-step pipeline.
type State int

const (
	Idle State = iota
	UpdateData
	WarmStart
	SolveVelocities
	Commit
	SolvePositions
	BatchEvents
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UpdateData:
		return "update_data"
	case WarmStart:
		return "warm_start"
	case SolveVelocities:
		return "solve_velocities"
	case Commit:
		return "commit"
	case SolvePositions:
		return "solve_positions"
	case BatchEvents:
		return "batch_events"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// next returns the only legal successor of s.
func (s State) next() State {
	if s == BatchEvents {
		return Idle
	}
	return s + 1
}
