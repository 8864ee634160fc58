// Package core defines the domain types shared by the overlay window
// controller, the trigger server and the capture pipeline.
package core

// OverlayState is the lifecycle state of the companion overlay window.
// Exactly one value exists per running overlay instance, and every
// mutation goes through the window controller's transition methods.
type OverlayState int

const (
	// Collapsed is the small iconic idle footprint. Initial state.
	Collapsed OverlayState = iota
	// Expanded shows the full control surface, idle.
	Expanded
	// Capturing means a capture cycle is in flight and input is disabled.
	Capturing
	// Displaying shows a cycle outcome and waits for an explicit dismiss.
	Displaying
)

func (s OverlayState) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case Expanded:
		return "expanded"
	case Capturing:
		return "capturing"
	case Displaying:
		return "displaying"
	default:
		return "unknown"
	}
}
