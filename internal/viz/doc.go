// Package viz renders a running MPM scene in the terminal.
//
// [Model] is a Bubble Tea program that steps an experiment one frame at a
// time and draws the particles on a braille [Canvas] through a rotatable
// [Camera], next to frame statistics and a kinetic energy plot.
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	R      - Rebuild the scene from its config
//	Arrows - Rotate the camera
//	+/-    - Zoom
//	F      - Front orthographic view
//	O      - Toggle perspective
//	T      - Cycle color themes
//	Q      - Quit
package viz
