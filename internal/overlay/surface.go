// Package overlay owns the companion window's lifecycle state machine.
//
// All window mutation funnels through the Controller; the platform
// shell that actually renders the window sits behind the Surface
// interface and is driven by typed commands.
package overlay

import "visiond/internal/core"

// Geometry is a window footprint in logical pixels.
type Geometry struct {
	Width  int
	Height int
}

// Surface is the platform window the controller drives.
//
// Implementations must apply each call synchronously relative to the
// controller's state change: the controller invokes the surface while
// holding its lock, so no observer can read a state whose geometry has
// not been handed to the shell yet.
type Surface interface {
	// Expand grows the window to the full control surface.
	Expand(g Geometry)
	// Shrink returns the window to its iconic footprint.
	Shrink(g Geometry)
	// Minimize hides the window at the OS level without a lifecycle change.
	Minimize()
	// Focus brings the window to the front.
	Focus()
	// Busy toggles the capture input while a cycle is in flight or displayed.
	Busy(busy bool)
	// Render shows a cycle outcome in place of the capture controls.
	Render(o core.Outcome)
	// Reload forces a fresh load of the control surface.
	Reload()
	// Close tears the window down.
	Close()
}
