package session

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/watchfi/storefront/internal/billing"
	"github.com/watchfi/storefront/internal/cart"
	"github.com/watchfi/storefront/internal/checkout"
	"github.com/watchfi/storefront/internal/payment"
	"github.com/watchfi/storefront/internal/search"
	"github.com/watchfi/storefront/pkg/backend"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

// Catalog resolves the watch a shopper adds to the cart.
type Catalog interface {
	GetCollection(ctx context.Context, id string) (backend.Collection, error)
}

// Session is one shopper's storefront state.
type Session struct {
	ID       string
	Cart     *cart.Store
	Searches *search.Recent
	Checkout *checkout.Context
	Billing  *billing.Form
	Payment  *payment.Flow

	catalog  Catalog
	kv       Store
	ttl      time.Duration
	logg     *logger.Logger
	lastSeen atomic.Int64
	closed   atomic.Bool
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen is the time of the last request for the session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// AddCollection adds the watch with the given id. Price and display fields
// come from the catalogue, never from the shopper.
func (s *Session) AddCollection(ctx context.Context, collectionID string) (cart.Item, error) {
	id := strings.TrimSpace(collectionID)
	if id == "" {
		return cart.Item{}, pkgerrors.New(pkgerrors.CodeValidation, "collectionId is required")
	}
	collection, err := s.catalog.GetCollection(ctx, id)
	if err != nil {
		return cart.Item{}, err
	}
	if !collection.IsAvailable {
		return cart.Item{}, pkgerrors.New(pkgerrors.CodeConflict, "this watch is not available")
	}
	item := cart.Item{
		ID:             collection.ID,
		Name:           collection.Name,
		UnitPriceCents: collection.PriceInCents,
		ImageURL:       collection.PrimaryPhotoURL,
		BrandName:      collection.BrandName(),
	}
	if item.ID == "" {
		item.ID = id
	}
	if err := s.AddItem(ctx, item); err != nil {
		return cart.Item{}, err
	}
	return item, nil
}

// idle refuses changes to what a running submission pays for.
func (s *Session) idle() error {
	if s.Payment.Processing() {
		return pkgerrors.New(pkgerrors.CodeConflict, "a payment is being processed; wait for it to finish")
	}
	return nil
}

// AddItem adds a line. Shopping again after a completed order starts a
// new checkout.
func (s *Session) AddItem(ctx context.Context, item cart.Item) error {
	if err := s.idle(); err != nil {
		return err
	}
	if s.Checkout.Step() == checkout.StepConfirmation {
		if s.Checkout.StartNew(ctx) {
			s.Payment.Reset()
			s.logg.Info(ctx, "checkout.restarted")
		}
	}
	s.Cart.AddToCart(ctx, item)
	return nil
}

func (s *Session) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if err := s.idle(); err != nil {
		return err
	}
	s.Cart.UpdateQuantity(ctx, id, quantity)
	return nil
}

func (s *Session) RemoveItem(ctx context.Context, id string) error {
	if err := s.idle(); err != nil {
		return err
	}
	s.Cart.RemoveFromCart(ctx, id)
	return nil
}

func (s *Session) ClearCart(ctx context.Context) error {
	if err := s.idle(); err != nil {
		return err
	}
	s.Cart.ClearCart(ctx)
	return nil
}

// PreviousStep goes back one wizard step unless a payment is running.
func (s *Session) PreviousStep(ctx context.Context) (checkout.Step, error) {
	if err := s.idle(); err != nil {
		return s.Checkout.Step(), err
	}
	return s.Checkout.Previous(ctx), nil
}

// ResetCheckout clears the wizard and the payment step. A running payment
// must settle first; a result that still lands on the reset checkout is
// dropped by the wizard.
func (s *Session) ResetCheckout(ctx context.Context, confirm bool) error {
	if err := s.idle(); err != nil {
		return err
	}
	if err := s.Checkout.Reset(ctx, confirm); err != nil {
		return err
	}
	s.Payment.Reset()
	s.logg.Info(ctx, "checkout.reset")
	return nil
}

// Close unmounts the session. Late async results are dropped and the
// persisted state stays restorable until its TTL runs out.
func (s *Session) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.Payment.Close()
	s.Checkout.Close()
	if s.kv == nil {
		return nil
	}
	return s.kv.Touch(ctx, s.kv.SessionKey(s.ID), s.ttl)
}
