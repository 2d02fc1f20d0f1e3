package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/watchfi/storefront/internal/billing"
	"github.com/watchfi/storefront/internal/cart"
	"github.com/watchfi/storefront/internal/checkout"
	"github.com/watchfi/storefront/internal/payment"
	"github.com/watchfi/storefront/internal/search"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

// Store persists the per-session cart and searches and marks known sessions.
type Store interface {
	cart.KV
	Exists(ctx context.Context, key string) (bool, error)
	Touch(ctx context.Context, key string, ttl time.Duration) error
	SessionKey(sessionID string) string
	CartKey(sessionID string) string
	SearchesKey(sessionID string) string
}

type ManagerParams struct {
	Store          Store
	Catalog        Catalog
	Geo            billing.GeoLoader
	Oracle         payment.PriceOracle
	Chain          payment.Chain
	Wallets        WalletFactory
	Bookings       payment.BookingRecorder
	Receipts       payment.ReceiptLedger
	Metrics        payment.Recorder
	BusinessWallet string
	Fallback       payment.Prices
	AdvanceDelay   time.Duration
	SubmitDeadline time.Duration
	TTL            time.Duration
	IdleTimeout    time.Duration
	Logger         *logger.Logger
	Now            func() time.Time
}

// Manager owns the live sessions. Each session is built once and closed on
// eviction or shutdown.
type Manager struct {
	params ManagerParams
	logg   *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type marker struct {
	CreatedAt time.Time `json:"createdAt"`
}

func NewManager(params ManagerParams) (*Manager, error) {
	switch {
	case params.Store == nil:
		return nil, fmt.Errorf("session store required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case params.Geo == nil:
		return nil, fmt.Errorf("geo loader required")
	case params.Chain == nil:
		return nil, fmt.Errorf("chain required")
	case params.Wallets == nil:
		return nil, fmt.Errorf("wallet factory required")
	case params.Bookings == nil:
		return nil, fmt.Errorf("booking recorder required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if params.TTL <= 0 {
		params.TTL = 30 * 24 * time.Hour
	}
	if params.IdleTimeout <= 0 {
		params.IdleTimeout = 2 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		params:   params,
		logg:     params.Logger,
		now:      now,
		sessions: map[string]*Session{},
	}, nil
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	if err := m.params.Store.SetJSON(ctx, m.params.Store.SessionKey(id), marker{CreatedAt: m.now().UTC()}, m.params.TTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register session")
	}
	sess, err := m.build(m.logg.WithSessionID(ctx, id), id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	m.logg.Info(m.logg.WithSessionID(ctx, id), "session.created")
	return sess, nil
}

// Get returns the live session or restores a known one from the store.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}

	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		sess.touch(m.now())
		return sess, nil
	}
	m.mu.Unlock()

	known, err := m.params.Store.Exists(ctx, m.params.Store.SessionKey(id))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup session")
	}
	if !known {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	restored, err := m.build(m.logg.WithSessionID(ctx, id), id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another request may have restored it meanwhile
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	m.sessions[id] = restored
	m.logg.Info(m.logg.WithSessionID(ctx, id), "session.restored")
	return restored, nil
}

// Resolve returns the session for id, creating one when id is unknown.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, bool, error) {
	if id != "" {
		sess, err := m.Get(ctx, id)
		if err == nil {
			return sess, false, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, false, err
		}
	}
	sess, err := m.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes the sessions idle for longer than the idle timeout.
func (m *Manager) EvictIdle(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.params.IdleTimeout)
	var idle []*Session

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.LastSeen().Before(cutoff) && !sess.Payment.State().Processing {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	var errs error
	for _, sess := range idle {
		errs = multierr.Append(errs, sess.Close(ctx))
	}
	if len(idle) > 0 {
		m.logg.Info(m.logg.WithField(ctx, "evicted", len(idle)), "session.evicted")
	}
	return len(idle), errs
}

// Run evicts idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.params.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.EvictIdle(ctx); err != nil {
				m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "session.evict.failed")
			}
		}
	}
}

// Close closes every live session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		all = append(all, sess)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs error
	for _, sess := range all {
		errs = multierr.Append(errs, sess.Close(ctx))
	}
	return errs
}

func (m *Manager) build(ctx context.Context, id string) (*Session, error) {
	p := m.params
	store, err := cart.NewStore(ctx, cart.StoreParams{KV: p.Store, Key: p.Store.CartKey(id), TTL: p.TTL, Logger: m.logg})
	if err != nil {
		return nil, err
	}
	searches, err := search.NewRecent(ctx, search.RecentParams{KV: p.Store, Key: p.Store.SearchesKey(id), TTL: p.TTL, Logger: m.logg})
	if err != nil {
		return nil, err
	}
	wizard, err := checkout.New(checkout.Params{Cart: store, Logger: m.logg})
	if err != nil {
		return nil, err
	}
	form, err := billing.NewForm(billing.FormParams{Wizard: wizard, Geo: p.Geo, Logger: m.logg})
	if err != nil {
		return nil, err
	}
	flow, err := payment.NewFlow(payment.FlowParams{
		SessionID:      id,
		Cart:           store,
		Wizard:         wizard,
		Oracle:         p.Oracle,
		Chain:          p.Chain,
		Wallets:        p.Wallets(id),
		Bookings:       p.Bookings,
		Receipts:       p.Receipts,
		BusinessWallet: p.BusinessWallet,
		Fallback:       p.Fallback,
		AdvanceDelay:   p.AdvanceDelay,
		SubmitDeadline: p.SubmitDeadline,
		Metrics:        p.Metrics,
		Logger:         m.logg,
	})
	if err != nil {
		return nil, err
	}
	wizard.OnEnter(checkout.StepPayment, func(ctx context.Context) {
		flow.FetchPrices(ctx)
	})

	sess := &Session{
		ID:       id,
		Cart:     store,
		Searches: searches,
		Checkout: wizard,
		Billing:  form,
		Payment:  flow,
		catalog:  p.Catalog,
		kv:       p.Store,
		ttl:      p.TTL,
		logg:     m.logg,
	}
	sess.touch(m.now())
	return sess, nil
}
