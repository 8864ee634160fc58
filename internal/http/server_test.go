package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"visiond/internal/capture"
	"visiond/internal/core"
	"visiond/internal/log"
	"visiond/internal/overlay"
	"visiond/internal/services"
	"visiond/internal/storage"
)

type noopSurface struct{}

func (noopSurface) Expand(overlay.Geometry) {}
func (noopSurface) Shrink(overlay.Geometry) {}
func (noopSurface) Minimize()               {}
func (noopSurface) Focus()                  {}
func (noopSurface) Busy(bool)               {}
func (noopSurface) Render(core.Outcome)     {}
func (noopSurface) Reload()                 {}
func (noopSurface) Close()                  {}

type staticContexts struct{}

func (staticContexts) Context(ctx context.Context, user string) string { return "ctx" }

type staticAdvisor struct{}

func (staticAdvisor) Fetch(ctx context.Context, image []byte, userContext, mobile string) (string, error) {
	return "Save more", nil
}

type fakeStore struct {
	snaps []storage.Snapshot
	err   error
}

func (f *fakeStore) ReplaceSnapshot(ctx context.Context, snap storage.Snapshot) error {
	f.snaps = append(f.snaps, snap)
	return f.err
}

type fakeInvalidator struct{ users []string }

func (f *fakeInvalidator) Invalidate(user string) { f.users = append(f.users, user) }

func quietLogger() *log.Logger {
	return log.NewWithHandler("test", slog.NewTextHandler(io.Discard, nil))
}

func newTestManager() *services.Manager {
	return services.NewManager(services.Deps{
		Surface:   func() overlay.Surface { return noopSurface{} },
		Collapsed: overlay.Geometry{Width: 96, Height: 96},
		Expanded:  overlay.Geometry{Width: 420, Height: 640},
		Capturer:  capture.Static{Data: bytes.Repeat([]byte{1}, 2000)},
		MinBytes:  1000,
		Contexts:  staticContexts{},
		Advisor:   staticAdvisor{},
		Logger:    quietLogger(),
	})
}

func newTestServer(store SnapshotStore, cache CacheInvalidator) (*Server, *services.Manager) {
	manager := newTestManager()
	return NewServer(":0", manager, store, cache, quietLogger()), manager
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %q", rr.Body.String())
	}
	return rr, decoded
}

func TestStartVision_ColdProcessLaunches(t *testing.T) {
	srv, manager := newTestServer(nil, nil)

	rr, body := doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"9999900000"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body["status"] != "launched" {
		t.Fatalf("body = %v, want launched", body)
	}
	if state, ok := manager.State(); !ok || state != core.Collapsed {
		t.Errorf("state = %v, want collapsed", state)
	}
	if manager.ActiveUser() != "9999900000" {
		t.Errorf("active user = %q", manager.ActiveUser())
	}
}

func TestStartVision_SecondCallFocuses(t *testing.T) {
	srv, manager := newTestServer(nil, nil)

	doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"9999900000"}`)
	_, body := doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"1111100000"}`)

	if body["status"] != "focused" {
		t.Fatalf("body = %v, want focused", body)
	}
	if manager.ActiveUser() != "9999900000" {
		t.Errorf("active user = %q, must not rebind while running", manager.ActiveUser())
	}
}

func TestStartVision_FormBodyAndEmptyBody(t *testing.T) {
	srv, manager := newTestServer(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/start-vision", strings.NewReader("mobile=7777700000"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || manager.ActiveUser() != "7777700000" {
		t.Fatalf("form start: code = %d, user = %q", rr.Code, manager.ActiveUser())
	}

	manager.Stop(context.Background())

	// No body at all binds the unknown user.
	req = httptest.NewRequest(http.MethodPost, "/start-vision", nil)
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || manager.ActiveUser() != "unknown" {
		t.Fatalf("empty start: code = %d, user = %q", rr.Code, manager.ActiveUser())
	}
}

func TestStopVision_NotRunningIsNotAnError(t *testing.T) {
	srv, _ := newTestServer(nil, nil)

	rr, body := doJSON(t, srv.Handler, http.MethodPost, "/stop-vision", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for idempotent stop", rr.Code)
	}
	if body["status"] != "not running" {
		t.Fatalf("body = %v", body)
	}
}

func TestStopVision_ClosesRunningInstance(t *testing.T) {
	srv, manager := newTestServer(nil, nil)
	doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"u1"}`)

	_, body := doJSON(t, srv.Handler, http.MethodPost, "/stop-vision", "")

	if body["status"] != "closed" {
		t.Fatalf("body = %v", body)
	}
	if manager.Running() {
		t.Error("instance still running after stop")
	}
}

func TestTrigger_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(nil, nil)
	for _, path := range []string{"/start-vision", "/stop-vision", "/context"} {
		rr, _ := doJSON(t, srv.Handler, http.MethodGet, path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d, want 405", path, rr.Code)
		}
	}
}

func TestContextPush_StoresAndInvalidates(t *testing.T) {
	store := &fakeStore{}
	inv := &fakeInvalidator{}
	srv, _ := newTestServer(store, inv)

	rr, body := doJSON(t, srv.Handler, http.MethodPost, "/context",
		`{"mobile":"9999900000","entries":[{"label":"Net Worth","amount":"125000.00","currency":"INR"}],"note":"EMI due"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rr.Code, body)
	}
	if len(store.snaps) != 1 {
		t.Fatalf("snapshots stored = %d", len(store.snaps))
	}
	snap := store.snaps[0]
	if snap.User != "9999900000" || snap.Note != "EMI due" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].AmountMinor != 12500000 {
		t.Errorf("entries = %+v", snap.Entries)
	}
	if len(inv.users) != 1 || inv.users[0] != "9999900000" {
		t.Errorf("invalidated = %v", inv.users)
	}
}

func TestContextPush_Validation(t *testing.T) {
	store := &fakeStore{}
	srv, _ := newTestServer(store, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing mobile", `{"entries":[]}`, http.StatusBadRequest},
		{"bad amount", `{"mobile":"u1","entries":[{"label":"x","amount":"abc"}]}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := doJSON(t, srv.Handler, http.MethodPost, "/context", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
	if len(store.snaps) != 0 {
		t.Errorf("invalid pushes must not reach the store: %+v", store.snaps)
	}
}

func TestContextPush_StoreFailure(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{err: errors.New("disk full")}, nil)
	rr, _ := doJSON(t, srv.Handler, http.MethodPost, "/context", `{"mobile":"u1","entries":[]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestOverlayEndpoints_RequireRunningInstance(t *testing.T) {
	srv, _ := newTestServer(nil, nil)
	for _, path := range []string{"/overlay/expand", "/overlay/collapse", "/overlay/reset", "/overlay/capture"} {
		rr, _ := doJSON(t, srv.Handler, http.MethodPost, path, "")
		if rr.Code != http.StatusConflict {
			t.Errorf("POST %s without instance = %d, want 409", path, rr.Code)
		}
	}
}

func TestOverlayCapture_FullCycle(t *testing.T) {
	srv, manager := newTestServer(nil, nil)
	doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"u1"}`)

	rr, _ := doJSON(t, srv.Handler, http.MethodPost, "/overlay/expand", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expand = %d", rr.Code)
	}

	rr, body := doJSON(t, srv.Handler, http.MethodPost, "/overlay/capture", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("capture = %d: %v", rr.Code, body)
	}
	if body["ok"] != true || body["message"] != "Save more" {
		t.Errorf("outcome = %v", body)
	}
	if state, _ := manager.State(); state != core.Displaying {
		t.Errorf("state = %v, want displaying", state)
	}

	rr, _ = doJSON(t, srv.Handler, http.MethodPost, "/overlay/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset = %d", rr.Code)
	}
	if state, _ := manager.State(); state != core.Collapsed {
		t.Errorf("state after reset = %v, want collapsed", state)
	}
}

func TestOverlayCapture_RequiresExpandedState(t *testing.T) {
	srv, _ := newTestServer(nil, nil)
	doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"u1"}`)

	rr, _ := doJSON(t, srv.Handler, http.MethodPost, "/overlay/capture", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("capture while collapsed = %d, want 409", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(nil, nil)

	rr, body := doJSON(t, srv.Handler, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rr.Code, body)
	}
	if body["running"] != false {
		t.Errorf("running = %v, want false", body["running"])
	}

	doJSON(t, srv.Handler, http.MethodPost, "/start-vision", `{"mobile":"u1"}`)
	_, body = doJSON(t, srv.Handler, http.MethodGet, "/healthz", "")
	if body["running"] != true || body["state"] != "collapsed" {
		t.Errorf("health after start = %v", body)
	}
}
