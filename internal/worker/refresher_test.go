package worker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visiond/internal/log"
	"visiond/internal/storage"
)

type fakeStore struct {
	snaps []storage.Snapshot
}

func (f *fakeStore) ReplaceSnapshot(ctx context.Context, snap storage.Snapshot) error {
	f.snaps = append(f.snaps, snap)
	return nil
}

type fakeInvalidator struct{ users []string }

func (f *fakeInvalidator) Invalidate(user string) { f.users = append(f.users, user) }

func quietLogger() *log.Logger {
	return log.NewWithHandler("test", slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshOnce_SkipsWithoutActiveUser(t *testing.T) {
	store := &fakeStore{}
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	r := NewRefresher(srv.URL, store, nil, func() string { return "" }, time.Minute, quietLogger())
	r.RefreshOnce(context.Background())

	r = NewRefresher(srv.URL, store, nil, func() string { return "unknown" }, time.Minute, quietLogger())
	r.RefreshOnce(context.Background())

	if called || len(store.snaps) != 0 {
		t.Error("refresher must skip when no identified user is bound")
	}
}

func TestRefreshOnce_StoresOverview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/9999900000/context" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"entries":[{"label":"Net Worth","amount":"125000.00","currency":"INR"},{"label":"Bad","amount":"oops"}],"note":"EMI due"}`))
	}))
	defer srv.Close()

	store := &fakeStore{}
	inv := &fakeInvalidator{}
	r := NewRefresher(srv.URL, store, inv, func() string { return "9999900000" }, time.Minute, quietLogger())
	r.RefreshOnce(context.Background())

	if len(store.snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(store.snaps))
	}
	snap := store.snaps[0]
	if snap.User != "9999900000" || snap.Note != "EMI due" {
		t.Errorf("snapshot = %+v", snap)
	}
	// Unparseable entries are skipped, not fatal.
	if len(snap.Entries) != 1 || snap.Entries[0].AmountMinor != 12500000 {
		t.Errorf("entries = %+v", snap.Entries)
	}
	if len(inv.users) != 1 {
		t.Errorf("invalidations = %v", inv.users)
	}
}

func TestRefreshOnce_BackendErrorOnlyLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := &fakeStore{}
	r := NewRefresher(srv.URL, store, nil, func() string { return "u1" }, time.Minute, quietLogger())
	r.RefreshOnce(context.Background())

	if len(store.snaps) != 0 {
		t.Error("failed refresh must not touch the store")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	r := NewRefresher("http://localhost:0", &fakeStore{}, nil, func() string { return "" }, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context deadline", err)
	}
}
