package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow_Budget(t *testing.T) {
	l := New(3)
	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d denied within budget", i+1)
		}
	}
	if l.Allow("a") {
		t.Error("fourth request in the same minute must be denied")
	}
	// Other callers have their own budget.
	if !l.Allow("b") {
		t.Error("independent caller denied")
	}
}

func TestAllow_WindowRollsOver(t *testing.T) {
	l := New(1)
	current := time.Now()
	l.now = func() time.Time { return current }

	if !l.Allow("a") || l.Allow("a") {
		t.Fatal("budget of one not enforced")
	}
	current = current.Add(61 * time.Second)
	if !l.Allow("a") {
		t.Error("new window must reset the budget")
	}
}

func TestAllow_Disabled(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestWrap_RejectsWith429(t *testing.T) {
	l := New(1)
	handler := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/overlay/capture", nil)
	req.RemoteAddr = "127.0.0.1:54321"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Error("missing Retry-After header")
	}
}
