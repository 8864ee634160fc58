// Package http is the local control plane that lets the web dashboard
// start, focus and stop the overlay companion, push context snapshots
// and probe health. It binds one well-known port for the lifetime of
// the host process; failing to bind is fatal at startup only.
package http

import (
	"context"
	"net/http"
	"time"

	"visiond/internal/core"
	"visiond/internal/log"
	"visiond/internal/middleware/ratelimit"
	"visiond/internal/storage"
)

// captureRequestsPerMinute bounds how often the shell can trigger a
// capture cycle. One cycle takes seconds; anything past this is a
// misbehaving caller, not a user clicking the button.
const captureRequestsPerMinute = 30

// Manager is the slice of the instance manager the control plane uses.
// The overlay operations come from the platform shell hosting the
// window; the lifecycle operations come from the dashboard.
type Manager interface {
	Start(ctx context.Context, user string) string
	Stop(ctx context.Context) string
	Running() bool
	ActiveUser() string
	State() (core.OverlayState, bool)
	Expand() error
	Collapse() error
	Reset() error
	RunCycle(ctx context.Context) (core.Outcome, error)
}

// SnapshotStore receives context snapshots pushed by the host.
type SnapshotStore interface {
	ReplaceSnapshot(ctx context.Context, snap storage.Snapshot) error
}

// CacheInvalidator drops a user's cached context summary after a push.
type CacheInvalidator interface {
	Invalidate(user string)
}

type Server struct {
	http.Server

	manager Manager
	store   SnapshotStore
	cache   CacheInvalidator
	logger  *log.Logger
	started time.Time
}

// NewServer configures routes and timeouts, returning a ready-to-run
// server. store and cache may be nil when snapshot pushes are disabled.
func NewServer(addr string, manager Manager, store SnapshotStore, cache CacheInvalidator, logger *log.Logger) *Server {
	s := &Server{
		manager: manager,
		store:   store,
		cache:   cache,
		logger:  logger.WithComponent(log.ComponentHTTP),
		started: time.Now(),
	}

	captures := ratelimit.New(captureRequestsPerMinute)

	mux := http.NewServeMux()
	mux.HandleFunc("/start-vision", s.handleStart)
	mux.HandleFunc("/stop-vision", s.handleStop)
	mux.HandleFunc("/context", s.handleContextPush)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/overlay/expand", s.handleExpand)
	mux.HandleFunc("/overlay/collapse", s.handleCollapse)
	mux.HandleFunc("/overlay/reset", s.handleReset)
	mux.Handle("/overlay/capture", captures.Wrap(http.HandlerFunc(s.handleCapture)))

	s.Addr = addr
	s.Handler = log.RequestLogger(logger)(mux)
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.MaxHeaderBytes = 1 << 16 // 64KB

	return s
}
