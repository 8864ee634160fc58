// Package services wires the overlay lifecycle to the capture
// pipeline: one manager per process, one overlay instance at most,
// one capture cycle in flight at most.
package services

import (
	"context"
	"errors"
	"sync"

	"visiond/internal/amqp"
	"visiond/internal/capture"
	"visiond/internal/core"
	"visiond/internal/log"
	"visiond/internal/overlay"
	"visiond/internal/storage"
)

// Trigger responses on the control plane.
const (
	StatusLaunched   = "launched"
	StatusFocused    = "focused"
	StatusClosed     = "closed"
	StatusNotRunning = "not running"
)

// ErrNotRunning is returned when an operation needs a live overlay
// instance and none exists.
var ErrNotRunning = errors.New("no overlay instance running")

// ContextProvider supplies the financial summary for a user.
type ContextProvider interface {
	Context(ctx context.Context, user string) string
}

// AdviceFetcher performs the outbound advice call.
type AdviceFetcher interface {
	Fetch(ctx context.Context, image []byte, userContext, mobile string) (string, error)
}

// Publisher mirrors advice outcomes to the dashboard broker. Optional.
type Publisher interface {
	PublishAdviceEvent(ctx context.Context, event *amqp.AdviceEvent) error
}

// HistoryWriter appends completed cycles to the local log. Optional.
type HistoryWriter interface {
	AppendAdvice(ctx context.Context, rec storage.AdviceRecord) (int64, error)
}

// SurfaceFactory builds the platform surface for a new overlay window.
type SurfaceFactory func() overlay.Surface

// Deps are the manager's collaborators. Publisher and History may be
// nil; everything else is required.
type Deps struct {
	Surface   SurfaceFactory
	Collapsed overlay.Geometry
	Expanded  overlay.Geometry
	Capturer  capture.Capturer
	MinBytes  int
	Contexts  ContextProvider
	Advisor   AdviceFetcher
	Publisher Publisher
	History   HistoryWriter
	Logger    *log.Logger
}

// Manager owns the process-global overlay instance reference. All
// mutation of it goes through Start/Stop under the manager's mutex,
// which is what makes concurrent trigger calls safe.
type Manager struct {
	mu   sync.Mutex
	ctrl *overlay.Controller

	deps   Deps
	logger *log.Logger
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:   deps,
		logger: deps.Logger.WithComponent(log.ComponentApp),
	}
}

// Start creates the overlay bound to user, or focuses the running one.
// The user identifier is accepted at most once per instance lifetime;
// later values are ignored while an instance is alive.
func (m *Manager) Start(ctx context.Context, user string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil {
		if user != "" && user != m.ctrl.User() {
			m.logger.WarnContext(ctx, "user rebind ignored while instance is alive",
				log.FieldUser, m.ctrl.User(), "requested", user)
		}
		m.ctrl.Focus()
		return StatusFocused
	}

	m.ctrl = overlay.NewController(user, m.deps.Surface(), m.deps.Collapsed, m.deps.Expanded, m.deps.Logger)
	m.logger.InfoContext(ctx, "overlay launched", log.FieldUser, m.ctrl.User())
	return StatusLaunched
}

// Stop closes the overlay and clears the bound user. Calling it with
// no instance running is an idempotent no-op.
func (m *Manager) Stop(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl == nil {
		return StatusNotRunning
	}
	user := m.ctrl.User()
	m.ctrl.Close()
	m.ctrl = nil
	m.logger.InfoContext(ctx, "overlay closed", log.FieldUser, user)
	return StatusClosed
}

// Running reports whether an overlay instance exists.
func (m *Manager) Running() bool {
	return m.controller() != nil
}

// ActiveUser returns the bound user, or empty when nothing is running.
func (m *Manager) ActiveUser() string {
	if c := m.controller(); c != nil {
		return c.User()
	}
	return ""
}

// State returns the overlay state of the running instance.
func (m *Manager) State() (core.OverlayState, bool) {
	if c := m.controller(); c != nil {
		return c.State(), true
	}
	return 0, false
}

// Expand, Collapse, Minimize and Reset forward the window-internal
// channel's lifecycle commands to the running instance.

func (m *Manager) Expand() error {
	c := m.controller()
	if c == nil {
		return ErrNotRunning
	}
	c.Expand()
	return nil
}

func (m *Manager) Collapse() error {
	c := m.controller()
	if c == nil {
		return ErrNotRunning
	}
	c.Collapse()
	return nil
}

func (m *Manager) Minimize() error {
	c := m.controller()
	if c == nil {
		return ErrNotRunning
	}
	c.Minimize()
	return nil
}

func (m *Manager) Reset() error {
	c := m.controller()
	if c == nil {
		return ErrNotRunning
	}
	c.Reset()
	return nil
}

func (m *Manager) controller() *overlay.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctrl
}
