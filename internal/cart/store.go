package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/money"
)

// Item is one cart line. Quantity is always at least 1.
type Item struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	ImageURL       string `json:"imageUrl"`
	BrandName      string `json:"brandName"`
}

// KV is the best-effort persistence the store writes through to.
type KV interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// StoreParams configures a Store.
type StoreParams struct {
	KV     KV
	Key    string
	TTL    time.Duration
	Logger *logger.Logger
}

// Store is a per-session cart. Operations never fail; persistence problems
// are logged and the in-memory state stays authoritative.
type Store struct {
	mu    sync.RWMutex
	items []Item
	kv    KV
	key   string
	ttl   time.Duration
	logg  *logger.Logger
}

// NewStore builds a Store and restores the persisted cart. Malformed data
// resets the cart to empty.
func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.KV != nil && strings.TrimSpace(params.Key) == "" {
		return nil, fmt.Errorf("persistence key required")
	}
	s := &Store{
		kv:   params.KV,
		key:  params.Key,
		ttl:  params.TTL,
		logg: params.Logger,
	}
	s.load(ctx)
	return s, nil
}

func (s *Store) load(ctx context.Context) {
	if s.kv == nil {
		return
	}
	var persisted []Item
	found, err := s.kv.GetJSON(ctx, s.key, &persisted)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.load.discarded")
		s.items = nil
		s.persistLocked(ctx)
		return
	}
	if !found {
		return
	}
	items, dropped := sanitize(persisted)
	if dropped {
		s.logg.Warn(ctx, "cart.load.discarded")
		s.items = nil
		s.persistLocked(ctx)
		return
	}
	s.items = items
}

// sanitize merges duplicate ids and reports whether the payload was malformed.
func sanitize(items []Item) ([]Item, bool) {
	out := make([]Item, 0, len(items))
	index := map[string]int{}
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" || item.Quantity < 1 || item.UnitPriceCents < 0 {
			return nil, true
		}
		if pos, ok := index[item.ID]; ok {
			out[pos].Quantity += item.Quantity
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out, false
}

// AddToCart increments an existing line by one or appends a new line with quantity 1.
func (s *Store) AddToCart(ctx context.Context, item Item) {
	if strings.TrimSpace(item.ID) == "" || item.UnitPriceCents < 0 {
		s.logg.Warn(s.logg.WithField(ctx, "item_id", item.ID), "cart.add.ignored")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Quantity++
			s.persistLocked(ctx)
			return
		}
	}
	item.Quantity = 1
	s.items = append(s.items, item)
	s.persistLocked(ctx)
}

// RemoveFromCart drops every line with the id. Absent ids are ignored.
func (s *Store) RemoveFromCart(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := false
	for _, item := range s.items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	if removed {
		s.persistLocked(ctx)
	}
}

// UpdateQuantity sets the quantity of a line; anything below 1 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) {
	if quantity < 1 {
		s.RemoveFromCart(ctx, id)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = quantity
			s.persistLocked(ctx)
			return
		}
	}
}

// ClearCart empties the cart. Callers must have the shopper's confirmation.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if s.kv == nil {
		return
	}
	if err := s.kv.Del(ctx, s.key); err != nil {
		s.logg.Error(ctx, "cart.persist.failed", err)
	}
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// TotalItems is the sum of quantities, not the number of lines.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalCents is the sum of unit price times quantity in cents.
func (s *Store) TotalCents() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TotalCentsOf(s.items)
}

// TotalCentsOf prices a copy of the lines, such as the one Items returns.
func TotalCentsOf(items []Item) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

// Total is the cart value in dollars.
func (s *Store) Total() decimal.Decimal {
	return money.FromCents(s.TotalCents())
}

// TotalPrice is the cart value in dollars as a float.
func (s *Store) TotalPrice() float64 {
	return s.Total().InexactFloat64()
}

func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	var err error
	if len(s.items) == 0 {
		err = s.kv.Del(ctx, s.key)
	} else {
		err = s.kv.SetJSON(ctx, s.key, s.items, s.ttl)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(s.logg.WithField(ctx, "key", s.key), "cart.persist.failed", err)
	}
}
