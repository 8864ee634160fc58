// Package worker runs the background context refresher that keeps the
// local snapshot cache roughly in sync with the backend's view of the
// active user's finances. Best effort: a refresh failure only logs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"visiond/internal/log"
	"visiond/internal/snapshot"
	"visiond/internal/storage"
)

// ActiveUserFunc reports the user bound to the running overlay, or an
// empty string when nothing is running.
type ActiveUserFunc func() string

// SnapshotStore receives refreshed snapshots.
type SnapshotStore interface {
	ReplaceSnapshot(ctx context.Context, snap storage.Snapshot) error
}

// CacheInvalidator drops the cached summary after a refresh.
type CacheInvalidator interface {
	Invalidate(user string)
}

type overviewEntry struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type overviewResponse struct {
	Entries []overviewEntry `json:"entries"`
	Note    string          `json:"note"`
}

type Refresher struct {
	baseURL  string
	http     *http.Client
	store    SnapshotStore
	cache    CacheInvalidator
	active   ActiveUserFunc
	interval time.Duration
	logger   *log.Logger
}

func NewRefresher(baseURL string, store SnapshotStore, cache CacheInvalidator, active ActiveUserFunc, interval time.Duration, logger *log.Logger) *Refresher {
	return &Refresher{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		store:    store,
		cache:    cache,
		active:   active,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run refreshes on a fixed interval until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce pulls the active user's financial overview from the
// backend and swaps it into the snapshot store. A missing or unknown
// user skips the round.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	user := r.active()
	if user == "" || user == "unknown" {
		return
	}

	overview, err := r.fetch(ctx, user)
	if err != nil {
		r.logger.WarnContext(ctx, "context refresh failed", log.FieldUser, user, log.FieldError, err)
		return
	}
	if len(overview.Entries) == 0 && overview.Note == "" {
		return
	}

	snap := storage.Snapshot{User: user, Note: overview.Note}
	for _, e := range overview.Entries {
		currency := e.Currency
		if currency == "" {
			currency = "INR"
		}
		minor, err := snapshot.AmountToMinor(e.Amount, currency)
		if err != nil {
			r.logger.WarnContext(ctx, "overview entry skipped", "label", e.Label, log.FieldError, err)
			continue
		}
		snap.Entries = append(snap.Entries, storage.SnapshotEntry{
			Label:       e.Label,
			AmountMinor: minor,
			Currency:    currency,
		})
	}

	if err := r.store.ReplaceSnapshot(ctx, snap); err != nil {
		r.logger.WarnContext(ctx, "snapshot replace failed", log.FieldUser, user, log.FieldError, err)
		return
	}
	if r.cache != nil {
		r.cache.Invalidate(user)
	}
	r.logger.InfoContext(ctx, "context refreshed", log.FieldUser, user, "entries", len(snap.Entries))
}

func (r *Refresher) fetch(ctx context.Context, user string) (*overviewResponse, error) {
	endpoint := fmt.Sprintf("%s/api/users/%s/context", r.baseURL, url.PathEscape(user))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build overview request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overview request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overview endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return nil, fmt.Errorf("read overview response: %w", err)
	}
	var out overviewResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode overview response: %w", err)
	}
	return &out, nil
}
