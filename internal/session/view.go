package session

import (
	"context"

	"github.com/watchfi/storefront/internal/cart"
	"github.com/watchfi/storefront/internal/checkout"
	"github.com/watchfi/storefront/internal/payment"
	"github.com/watchfi/storefront/pkg/money"
)

const (
	EmptyCartMessage = "Your cart is empty"
	EmptyCartAction  = "Continue Shopping"
)

// Interstitial replaces the wizard while there is nothing to check out.
type Interstitial struct {
	EmptyCart bool   `json:"emptyCart"`
	Message   string `json:"message"`
	Action    string `json:"action"`
}

type StepInfo struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Active   bool   `json:"active"`
	Complete bool   `json:"complete"`
}

type BillingView struct {
	Data      checkout.BillingData `json:"data"`
	Errors    map[string]string    `json:"errors"`
	Status    string               `json:"status,omitempty"`
	GeoLoaded bool                 `json:"geoLoaded"`
}

type CartLine struct {
	cart.Item
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type ReviewView struct {
	Items      []CartLine           `json:"items"`
	TotalItems int                  `json:"totalItems"`
	Total      string               `json:"total"`
	ShipTo     checkout.BillingData `json:"shipTo"`
}

type ConfirmationView struct {
	Signature       string `json:"signature"`
	ShipmentAddress string `json:"shipmentAddress"`
}

// View is what the checkout page renders for the current state.
type View struct {
	Interstitial *Interstitial     `json:"interstitial,omitempty"`
	Step         int               `json:"step"`
	Header       string            `json:"header"`
	Title        string            `json:"title"`
	Steps        []StepInfo        `json:"steps"`
	IsLoading    bool              `json:"isLoading"`
	Error        string            `json:"error,omitempty"`
	Billing      *BillingView      `json:"billing,omitempty"`
	Review       *ReviewView       `json:"review,omitempty"`
	Payment      *payment.State    `json:"payment,omitempty"`
	Confirmation *ConfirmationView `json:"confirmation,omitempty"`
}

// View renders the checkout. An empty cart shows the interstitial unless
// the order is already complete.
func (s *Session) View(ctx context.Context) View {
	snap := s.Checkout.Snapshot()
	if s.Cart.IsEmpty() && snap.CurrentStep != checkout.StepConfirmation {
		return View{Interstitial: &Interstitial{EmptyCart: true, Message: EmptyCartMessage, Action: EmptyCartAction}}
	}

	view := View{
		Step:      int(snap.CurrentStep),
		Header:    snap.CurrentStep.Header(),
		Title:     snap.CurrentStep.Title(),
		IsLoading: snap.IsLoading,
		Error:     snap.Error,
	}
	for _, step := range checkout.Steps() {
		view.Steps = append(view.Steps, StepInfo{
			Number:   int(step),
			Title:    step.Title(),
			Active:   step == snap.CurrentStep,
			Complete: step < snap.CurrentStep,
		})
	}

	switch snap.CurrentStep {
	case checkout.StepBilling:
		view.Billing = &BillingView{
			Data:      snap.BillingData,
			Errors:    s.Billing.FieldErrors(),
			Status:    s.Billing.Status(),
			GeoLoaded: s.Billing.GeoLoaded(),
		}
	case checkout.StepReview:
		view.Review = s.review(snap.BillingData)
	case checkout.StepPayment:
		state := s.Payment.State()
		view.Payment = &state
	case checkout.StepConfirmation:
		view.Confirmation = &ConfirmationView{
			Signature:       snap.Signature,
			ShipmentAddress: snap.BillingData.ShipmentAddress(),
		}
	}
	return view
}

func (s *Session) review(billing checkout.BillingData) *ReviewView {
	items := s.Cart.Items()
	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, CartLine{
			Item:      item,
			UnitPrice: money.FormatCents(item.UnitPriceCents),
			LineTotal: money.FormatCents(item.UnitPriceCents * int64(item.Quantity)),
		})
	}
	return &ReviewView{
		Items:      lines,
		TotalItems: s.Cart.TotalItems(),
		Total:      money.FormatCents(s.Cart.TotalCents()),
		ShipTo:     billing,
	}
}
