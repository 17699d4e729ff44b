// Package viz is a terminal telemetry dashboard for a running engine, built on
// Bubble Tea. It shows frame rate, energy, counts and run quality metrics; it
// never draws the bodies themselves.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Rebuild the scene from scratch
//	T     - Cycle color themes
//	?     - Show help
//	Q     - Quit
package viz
