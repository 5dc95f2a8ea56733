// Package viz provides a terminal live view of a running experiment.
//
// [Model] is a Bubble Tea model that steps the experiment once per frame and
// draws body centres joined by their joints on a braille [Canvas], seen
// through an orbiting [Camera]. Residual and energy history are charted with
// asciigraph.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	N     - Single step while paused
//	R     - Rebuild the scenario
//	C     - Toggle Baumgarte / post stabilization
//	W     - Toggle warm starting
//	+/-   - Velocity iterations
//	T     - Cycle color themes
//	S     - Save the frame as SVG
//	?     - Show help overlay
//
// A [ConfigMsg] hot-swaps the solver section of a reloaded config, or rebuilds
// the world when the scene changed.
package viz
