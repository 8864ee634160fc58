// Package snapshot supplies the short textual summary of the user's
// cached financial state that accompanies every advice request. The
// provider is read-only to the capture pipeline; the host environment
// injects data through the trigger server or the refresh worker.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"

	"visiond/internal/cache"
	"visiond/internal/log"
	"visiond/internal/storage"
)

// Fallback is used when no financial context is cached for the user.
const Fallback = "No cached financial context is available for this user yet."

// Reader is the slice of the snapshot store the provider needs.
type Reader interface {
	GetSnapshot(ctx context.Context, user string) (*storage.Snapshot, error)
}

type Provider struct {
	reader Reader
	cache  cache.Cache[string]
	logger *log.Logger
}

func NewProvider(reader Reader, ttl time.Duration, logger *log.Logger) *Provider {
	return &Provider{
		reader: reader,
		cache:  cache.NewTTL[string](32, ttl),
		logger: logger.WithComponent(log.ComponentSnapshot),
	}
}

// Context returns the financial overview for user, degrading to the
// generic fallback when nothing is cached or the store is unreachable.
func (p *Provider) Context(ctx context.Context, user string) string {
	if s, ok := p.cache.Get(user); ok {
		return s
	}

	snap, err := p.reader.GetSnapshot(ctx, user)
	if err != nil {
		p.logger.WarnContext(ctx, "snapshot read failed", log.FieldUser, user, log.FieldError, err)
		return Fallback
	}
	if snap == nil || (len(snap.Entries) == 0 && snap.Note == "") {
		return Fallback
	}

	s := Format(snap)
	p.cache.Set(user, s)
	return s
}

// Invalidate drops the cached summary after the host pushes new data.
func (p *Provider) Invalidate(user string) {
	p.cache.Delete(user)
}

// Format renders the overview lines the advice service expects.
func Format(snap *storage.Snapshot) string {
	var b strings.Builder
	b.WriteString("## User Financial Overview\n")
	for _, e := range snap.Entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Label, money.New(e.AmountMinor, e.Currency).Display())
	}
	if snap.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", snap.Note)
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "As of %s\n", snap.UpdatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return strings.TrimRight(b.String(), "\n")
}
