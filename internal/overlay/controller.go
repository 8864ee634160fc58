package overlay

import (
	"fmt"
	"sync"
	"time"

	"visiond/internal/core"
	"visiond/internal/log"
)

// Controller is the single writer of the overlay's lifecycle state.
// It owns the OverlayState, the bound user and the in-flight
// CaptureSession, and applies geometry through the Surface before each
// new state becomes observable.
type Controller struct {
	mu        sync.Mutex
	state     core.OverlayState
	session   *core.CaptureSession
	user      string
	surface   Surface
	collapsed Geometry
	expanded  Geometry
	logger    *log.Logger
}

// NewController creates a controller bound to user, starting Collapsed.
// The collapsed footprint is applied to the surface immediately.
func NewController(user string, surface Surface, collapsed, expanded Geometry, logger *log.Logger) *Controller {
	if user == "" {
		user = "unknown"
	}
	c := &Controller{
		state:     core.Collapsed,
		user:      user,
		surface:   surface,
		collapsed: collapsed,
		expanded:  expanded,
		logger:    logger.WithComponent(log.ComponentOverlay),
	}
	surface.Shrink(collapsed)
	return c
}

// State returns the current overlay state.
func (c *Controller) State() core.OverlayState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the identifier bound at creation. Immutable for the
// lifetime of the instance.
func (c *Controller) User() string {
	return c.user
}

// Session returns the in-flight capture session, or nil.
func (c *Controller) Session() *core.CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Expand grows the window to the full control surface. Valid only from
// Collapsed; from any other state it is an idempotent logged no-op.
func (c *Controller) Expand() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.Collapsed {
		c.logger.Info("expand ignored", log.FieldState, c.state.String())
		return
	}
	c.surface.Expand(c.expanded)
	c.state = core.Expanded
	c.logger.Info("overlay expanded", log.FieldUser, c.user)
}

// Collapse returns the window to its iconic footprint from any state
// and discards any pending capture session.
func (c *Controller) Collapse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.surface.Shrink(c.collapsed)
	c.surface.Busy(false)
	c.state = core.Collapsed
	c.logger.Info("overlay collapsed", log.FieldUser, c.user)
}

// BeginCapture starts a capture cycle. Valid only from Expanded; the
// returned session is the one the cycle fills in.
func (c *Controller) BeginCapture() (*core.CaptureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.Expanded {
		return nil, fmt.Errorf("begin capture from %s: %w", c.state, core.ErrInvalidTransition)
	}
	c.session = &core.CaptureSession{StartedAt: time.Now()}
	c.surface.Busy(true)
	c.state = core.Capturing
	return c.session, nil
}

// ShowResult stores the outcome of the capture attempt that produced
// session and renders it. Valid only from Capturing, and only for the
// session BeginCapture handed out: a cycle whose session was discarded
// by Collapse, Reset or Close stays refused even when a newer capture
// is already in flight.
func (c *Controller) ShowResult(session *core.CaptureSession, o core.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.Capturing {
		return fmt.Errorf("show result from %s: %w", c.state, core.ErrInvalidTransition)
	}
	if session == nil || c.session != session {
		return fmt.Errorf("show result for a superseded capture session: %w", core.ErrInvalidTransition)
	}
	c.session.Outcome = &o
	c.surface.Render(o)
	c.state = core.Displaying
	c.logger.Info("outcome displayed", log.FieldOutcome, o.OK, log.FieldUser, c.user)
	return nil
}

// Minimize hides the window at the OS level. Orthogonal to the
// lifecycle: the overlay state does not change.
func (c *Controller) Minimize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.Minimize()
}

// Focus brings the window to the front without a state transition.
func (c *Controller) Focus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.Focus()
}

// Reset reloads the control surface for full error recovery. The
// reloaded surface initializes Collapsed with no session.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.surface.Reload()
	c.surface.Shrink(c.collapsed)
	c.surface.Busy(false)
	c.state = core.Collapsed
	c.logger.Info("overlay reset", log.FieldUser, c.user)
}

// Close tears the window down and discards all session state. The
// controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.surface.Close()
	c.logger.Info("overlay closed", log.FieldUser, c.user)
}
