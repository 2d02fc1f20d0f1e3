package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/internal/cart"
	"github.com/watchfi/storefront/internal/checkout"
	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/enums"
	pkgsolana "github.com/watchfi/storefront/pkg/solana"
)

// Prices maps a token to its USD price.
type Prices = map[enums.PaymentToken]decimal.Decimal

// PriceOracle quotes live token prices.
type PriceOracle interface {
	Prices(ctx context.Context) (Prices, error)
}

// Transfer types are shared with the Solana client so it satisfies Chain
// without an adapter.
type (
	TransferRequest  = pkgsolana.TransferRequest
	UnsignedTransfer = pkgsolana.UnsignedTransfer
	SignedTransfer   = pkgsolana.SignedTransfer
)

// Wallet is a connected wallet.
type Wallet interface {
	PublicKey() string
	SignTransfer(ctx context.Context, transfer UnsignedTransfer) (SignedTransfer, error)
}

// WalletConnector connects a wallet once the wallet capability is loaded.
type WalletConnector interface {
	Connect(ctx context.Context) (Wallet, error)
}

// WalletLoader obtains the wallet capability. It runs on first connect only
// and is retried after a failure.
type WalletLoader func(ctx context.Context) (WalletConnector, error)

// Chain is the network the transfer is settled on.
type Chain interface {
	// Balance returns the owner's balance in base units.
	Balance(ctx context.Context, owner string, token enums.PaymentToken) (uint64, error)
	BuildTransfer(ctx context.Context, req TransferRequest) (UnsignedTransfer, error)
	Submit(ctx context.Context, signed SignedTransfer) (string, error)
	// Confirm blocks until the signature reaches the confirmed commitment.
	Confirm(ctx context.Context, signature string) error
}

// BookingRecorder posts the booking for a paid order.
type BookingRecorder interface {
	CreateBooking(ctx context.Context, req backend.BookingRequest) (backend.Booking, error)
}

// Receipt is a confirmed on-chain transfer with its booking outcome.
type Receipt struct {
	SessionID   string
	Signature   string
	Token       enums.PaymentToken
	TokenAmount decimal.Decimal
	USDValue    decimal.Decimal
	Sender      string
	Receiver    string
	BookingID   string
	Booking     backend.BookingRequest
}

// ReceiptLedger keeps a durable record of every confirmed transfer.
type ReceiptLedger interface {
	RecordBooked(ctx context.Context, receipt Receipt) error
	RecordBookingFailed(ctx context.Context, receipt Receipt, cause error) error
}

// CartSource is the cart slice the payment step reads.
type CartSource interface {
	Items() []cart.Item
	TotalCents() int64
}

// Wizard is the checkout slice the payment step reads and advances.
type Wizard interface {
	Step() checkout.Step
	Generation() uint64
	Billing() checkout.BillingData
	// RecordPaymentSignature reports false when the checkout of generation
	// is gone or has left the payment step.
	RecordPaymentSignature(generation uint64, signature string) bool
	NextFrom(ctx context.Context, from checkout.Step) error
}

// Recorder receives payment metrics.
type Recorder interface {
	ObserveSubmission(token, outcome string, elapsed time.Duration)
	IncStageFailure(stage string)
	IncPriceFallback()
}

// Scheduler runs fn after delay and returns a func that cancels it.
type Scheduler func(delay time.Duration, fn func()) (cancel func())

func afterFunc(delay time.Duration, fn func()) func() {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string, string, time.Duration) {}
func (nopRecorder) IncStageFailure(string)                          {}
func (nopRecorder) IncPriceFallback()                               {}
