// Package viz renders runs in the terminal.
//
// [Plot] and [Summary] print stored or finished runs with asciigraph charts.
// [Live] is a Bubble Tea model following a run as it ticks: frames arrive
// through a channel fed by [FrameObserver] and are drawn on a Braille
// [Canvas] by a [Scene].
//
// # Key Bindings
//
//	Space - Freeze/resume the display
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
