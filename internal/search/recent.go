package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/watchfi/storefront/pkg/logger"
)

// MaxRecent caps the number of remembered searches.
const MaxRecent = 4

// DefaultSearches is shown until the shopper searches for something.
var DefaultSearches = []string{"Rolex", "Omega", "Patek Philippe", "Audemars Piguet"}

// KV is the best-effort persistence the recent list writes through to.
type KV interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RecentParams struct {
	KV     KV
	Key    string
	TTL    time.Duration
	Logger *logger.Logger
}

// Recent keeps the shopper's last searches, most recent first.
type Recent struct {
	mu     sync.RWMutex
	terms  []string
	stored bool
	kv     KV
	key    string
	ttl    time.Duration
	logg   *logger.Logger
}

func NewRecent(ctx context.Context, params RecentParams) (*Recent, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.KV != nil && strings.TrimSpace(params.Key) == "" {
		return nil, fmt.Errorf("persistence key required")
	}
	r := &Recent{kv: params.KV, key: params.Key, ttl: params.TTL, logg: params.Logger}
	r.load(ctx)
	return r, nil
}

func (r *Recent) load(ctx context.Context) {
	if r.kv == nil {
		return
	}
	var persisted []string
	found, err := r.kv.GetJSON(ctx, r.key, &persisted)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "searches.load.discarded")
		r.discard(ctx)
		return
	}
	if !found {
		return
	}
	terms := normalize(persisted)
	if len(terms) == 0 && len(persisted) > 0 {
		r.discard(ctx)
		return
	}
	r.terms = terms
	r.stored = true
}

func (r *Recent) discard(ctx context.Context) {
	r.terms = nil
	r.stored = false
	if err := r.kv.Del(ctx, r.key); err != nil {
		r.logg.Error(ctx, "searches.persist.failed", err)
	}
}

// List returns the remembered searches, or the defaults when none were stored.
func (r *Recent) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source := r.terms
	if !r.stored {
		source = DefaultSearches
	}
	out := make([]string, len(source))
	copy(out, source)
	return out
}

// Add moves term to the front, dropping duplicates and anything past MaxRecent.
// Blank terms are ignored.
func (r *Recent) Add(ctx context.Context, term string) []string {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.List()
	}
	r.mu.Lock()
	next := []string{term}
	for _, existing := range r.terms {
		if strings.EqualFold(existing, term) {
			continue
		}
		next = append(next, existing)
	}
	if len(next) > MaxRecent {
		next = next[:MaxRecent]
	}
	r.terms = next
	r.stored = true
	r.persistLocked(ctx)
	r.mu.Unlock()

	return r.List()
}

// Clear forgets every search; List falls back to the defaults afterwards.
func (r *Recent) Clear(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.terms = nil
	r.stored = false
	if r.kv == nil {
		return
	}
	if err := r.kv.Del(ctx, r.key); err != nil {
		r.logg.Error(r.logg.WithField(ctx, "key", r.key), "searches.persist.failed", err)
	}
}

func (r *Recent) persistLocked(ctx context.Context) {
	if r.kv == nil {
		return
	}
	if err := r.kv.SetJSON(ctx, r.key, r.terms, r.ttl); err != nil {
		r.logg.Error(r.logg.WithField(ctx, "key", r.key), "searches.persist.failed", err)
	}
}

func normalize(terms []string) []string {
	out := make([]string, 0, MaxRecent)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, term) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, term)
		if len(out) == MaxRecent {
			break
		}
	}
	return out
}
