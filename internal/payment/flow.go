package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/watchfi/storefront/internal/cart"
	"github.com/watchfi/storefront/internal/checkout"
	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/money"
)

const (
	StatusFallbackPrices  = "Using fallback crypto prices"
	StatusConnectWallet   = "Please connect your wallet."
	StatusSending         = "Sending transaction..."
	statusSuccessPrefix   = "Payment successful! Signature: "
	statusFailurePrefix   = "Payment failed: "
	statusConnectFailed   = "Failed to connect wallet: "
	bookingPaymentStatus  = "PAID"
	defaultAdvanceDelay   = 2 * time.Second
	defaultSubmitDeadline = 3 * time.Minute
)

const (
	stageBalance = "balance"
	stageBuild   = "build"
	stageSign    = "sign"
	stageSubmit  = "submit"
	stageConfirm = "confirm"
	stageBooking = "booking"
)

// DefaultFallbackPrices is used whenever the oracle cannot be reached.
func DefaultFallbackPrices() Prices {
	return Prices{
		enums.PaymentTokenSOL:  decimal.NewFromInt(100),
		enums.PaymentTokenUSDC: decimal.NewFromInt(1),
	}
}

type FlowParams struct {
	SessionID      string
	Cart           CartSource
	Wizard         Wizard
	Oracle         PriceOracle
	Chain          Chain
	Wallets        WalletLoader
	Bookings       BookingRecorder
	Receipts       ReceiptLedger
	BusinessWallet string
	Fallback       Prices
	AdvanceDelay   time.Duration
	SubmitDeadline time.Duration
	Schedule       Scheduler
	Metrics        Recorder
	Logger         *logger.Logger
}

// Order is the charge derived from the cart and the selected token price.
type Order struct {
	USDCents    int64           `json:"usdCents"`
	USDValue    decimal.Decimal `json:"usdValue"`
	Token       string          `json:"tokenSymbol"`
	Price       decimal.Decimal `json:"price"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	BaseUnits   uint64          `json:"baseUnits"`
	Fallback    bool            `json:"usingFallbackPrice"`
	Display     string          `json:"display"`
	USDDisplay  string          `json:"usdDisplay"`
}

// State is what the payment step shows.
type State struct {
	Token           string            `json:"paymentMethod"`
	Phase           string            `json:"phase"`
	Processing      bool              `json:"isProcessing"`
	Status          string            `json:"status,omitempty"`
	Order           Order             `json:"order"`
	Prices          map[string]string `json:"prices"`
	UsingFallback   bool              `json:"usingFallbackPrices"`
	WalletConnected bool              `json:"walletConnected"`
	PublicKey       string            `json:"publicKey,omitempty"`
	WalletBalance   string            `json:"walletBalance,omitempty"`
	Signature       string            `json:"signature,omitempty"`
	AwaitingBooking bool              `json:"awaitingBooking"`
	CanSubmit       bool              `json:"canSubmit"`
}

// pendingBooking is a confirmed transfer whose booking has not been accepted.
type pendingBooking struct {
	receipt    Receipt
	generation uint64
}

// attempt is what one submission charges and books. It is fixed when the
// submission starts so later cart or billing edits cannot leak into it.
type attempt struct {
	generation uint64
	token      enums.PaymentToken
	order      Order
	items      []cart.Item
	billing    checkout.BillingData
}

// Flow is the crypto payment step for one shopper.
type Flow struct {
	sessionID string
	cart      CartSource
	wizard    Wizard
	oracle    PriceOracle
	chain     Chain
	wallets   WalletLoader
	bookings  BookingRecorder
	receipts  ReceiptLedger
	business  string
	fallback  Prices
	delay     time.Duration
	deadline  time.Duration
	schedule  Scheduler
	metrics   Recorder
	logg      *logger.Logger

	mu            sync.Mutex
	token         enums.PaymentToken
	phase         enums.SubmissionPhase
	status        string
	prices        Prices
	usingFallback bool
	fetching      bool
	connecting    bool
	connector     WalletConnector
	wallet        Wallet
	balance       *decimal.Decimal
	signature     string
	pending       *pendingBooking
	cancelAdvance func()
	closed        bool
}

func NewFlow(params FlowParams) (*Flow, error) {
	switch {
	case params.Cart == nil:
		return nil, fmt.Errorf("cart required")
	case params.Wizard == nil:
		return nil, fmt.Errorf("wizard required")
	case params.Chain == nil:
		return nil, fmt.Errorf("chain required")
	case params.Wallets == nil:
		return nil, fmt.Errorf("wallet loader required")
	case params.Bookings == nil:
		return nil, fmt.Errorf("booking recorder required")
	case strings.TrimSpace(params.BusinessWallet) == "":
		return nil, fmt.Errorf("business wallet required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	fallback := params.Fallback
	if len(fallback) == 0 {
		fallback = DefaultFallbackPrices()
	}
	for _, token := range enums.PaymentTokens() {
		if price, ok := fallback[token]; !ok || !price.IsPositive() {
			return nil, fmt.Errorf("fallback price for %s must be positive", token)
		}
	}
	f := &Flow{
		sessionID: params.SessionID,
		cart:      params.Cart,
		wizard:    params.Wizard,
		oracle:    params.Oracle,
		chain:     params.Chain,
		wallets:   params.Wallets,
		bookings:  params.Bookings,
		receipts:  params.Receipts,
		business:  strings.TrimSpace(params.BusinessWallet),
		fallback:  fallback,
		delay:     params.AdvanceDelay,
		deadline:  params.SubmitDeadline,
		schedule:  params.Schedule,
		metrics:   params.Metrics,
		logg:      params.Logger,
		token:     enums.PaymentTokenSOL,
		phase:     enums.SubmissionIdle,
		prices:    Prices{},
	}
	if f.delay <= 0 {
		f.delay = defaultAdvanceDelay
	}
	if f.deadline <= 0 {
		f.deadline = defaultSubmitDeadline
	}
	if f.schedule == nil {
		f.schedule = afterFunc
	}
	if f.metrics == nil {
		f.metrics = nopRecorder{}
	}
	return f, nil
}

// State returns the current payment view.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Flow) stateLocked() State {
	prices := make(map[string]string, len(f.prices))
	for token, price := range f.prices {
		prices[token.String()] = price.String()
	}
	state := State{
		Token:           f.token.String(),
		Phase:           f.phase.String(),
		Processing:      f.phase.IsProcessing(),
		Status:          f.status,
		Order:           f.orderLocked(),
		Prices:          prices,
		UsingFallback:   f.usingFallback,
		WalletConnected: f.wallet != nil,
		Signature:       f.signature,
		AwaitingBooking: f.pending != nil,
	}
	if f.wallet != nil {
		state.PublicKey = f.wallet.PublicKey()
	}
	if f.balance != nil {
		state.WalletBalance = money.FormatToken(*f.balance)
	}
	state.CanSubmit = f.wallet != nil && !state.Processing && f.phase != enums.SubmissionSucceeded && !f.closed
	return state
}

// orderLocked derives the charge. A token without a live price uses the
// fallback price.
func (f *Flow) orderLocked() Order {
	if f.pending != nil {
		return orderFromReceipt(f.pending.receipt)
	}
	return f.orderForLocked(f.cart.TotalCents())
}

func (f *Flow) orderForLocked(cents int64) Order {
	usd := money.FromCents(cents)
	price, ok := f.prices[f.token]
	fallback := !ok || !price.IsPositive()
	if fallback {
		price = f.fallback[f.token]
	}
	amount := usd.DivRound(price, 9)
	units := amount.Shift(f.token.Decimals()).Round(0)
	order := Order{
		USDCents:    cents,
		USDValue:    usd,
		Token:       f.token.String(),
		Price:       price,
		TokenAmount: amount,
		Fallback:    fallback || f.usingFallback,
		Display:     money.FormatToken(amount) + " " + f.token.String(),
		USDDisplay:  money.FormatUSD(usd),
	}
	if units.IsPositive() {
		order.BaseUnits = uint64(units.IntPart())
	}
	return order
}

func orderFromReceipt(r Receipt) Order {
	return Order{
		USDCents:    money.ToCents(r.USDValue),
		USDValue:    r.USDValue,
		Token:       r.Token.String(),
		TokenAmount: r.TokenAmount,
		BaseUnits:   uint64(r.TokenAmount.Shift(r.Token.Decimals()).Round(0).IntPart()),
		Display:     money.FormatToken(r.TokenAmount) + " " + r.Token.String(),
		USDDisplay:  money.FormatUSD(r.USDValue),
	}
}

// SelectPaymentMethod switches the token and recomputes the amount.
func (f *Flow) SelectPaymentMethod(value string) (State, error) {
	token, err := enums.ParsePaymentToken(value)
	if err != nil {
		return f.State(), pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment method must be SOL or USDC")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.stateLocked(), nil
	}
	if f.phase.IsProcessing() {
		return f.stateLocked(), pkgerrors.New(pkgerrors.CodeConflict, "payment is being processed")
	}
	if f.pending != nil && f.pending.receipt.Token != token {
		return f.stateLocked(), pkgerrors.New(pkgerrors.CodeConflict, "a confirmed payment is awaiting its booking")
	}
	if token != f.token {
		f.balance = nil
	}
	f.token = token
	if price, ok := f.prices[token]; !ok || !price.IsPositive() {
		f.status = StatusFallbackPrices
	}
	return f.stateLocked(), nil
}

// FetchPrices refreshes the live prices. Any oracle failure installs the
// fallback prices; the call itself never fails.
func (f *Flow) FetchPrices(ctx context.Context) State {
	f.mu.Lock()
	if f.closed || f.fetching {
		state := f.stateLocked()
		f.mu.Unlock()
		return state
	}
	f.fetching = true
	f.mu.Unlock()

	prices, err := f.quote(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetching = false
	if f.closed {
		return f.stateLocked()
	}
	if err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "payment.prices.fallback")
		f.metrics.IncPriceFallback()
		f.prices = copyPrices(f.fallback)
		f.usingFallback = true
		if !f.phase.IsProcessing() {
			f.status = StatusFallbackPrices
		}
		return f.stateLocked()
	}
	f.prices = prices
	f.usingFallback = false
	if f.status == StatusFallbackPrices {
		f.status = ""
	}
	return f.stateLocked()
}

func (f *Flow) quote(ctx context.Context) (Prices, error) {
	if f.oracle == nil {
		return nil, fmt.Errorf("price oracle not configured")
	}
	quoted, err := f.oracle.Prices(ctx)
	if err != nil {
		return nil, err
	}
	out := Prices{}
	for _, token := range enums.PaymentTokens() {
		price, ok := quoted[token]
		if !ok || !price.IsPositive() {
			return nil, fmt.Errorf("oracle returned no usable %s price", token)
		}
		out[token] = price
	}
	return out, nil
}

// ConnectWallet loads the wallet capability on first use and connects.
func (f *Flow) ConnectWallet(ctx context.Context) (State, error) {
	f.mu.Lock()
	if f.closed || f.connecting {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, nil
	}
	if f.phase.IsProcessing() {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, pkgerrors.New(pkgerrors.CodeConflict, "payment is being processed")
	}
	f.connecting = true
	connector := f.connector
	f.mu.Unlock()

	wallet, connector, err := f.connect(ctx, connector)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connecting = false
	if connector != nil {
		f.connector = connector
	}
	if f.closed {
		return f.stateLocked(), nil
	}
	if err != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "payment.wallet.connect_failed")
		f.status = statusConnectFailed + errorText(err)
		return f.stateLocked(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wallet connection failed")
	}
	f.wallet = wallet
	f.balance = nil
	if f.phase == enums.SubmissionAwaitingWalletConnection {
		f.phase = enums.SubmissionIdle
	}
	if f.status == StatusConnectWallet || strings.HasPrefix(f.status, statusConnectFailed) {
		f.status = ""
	}
	f.logg.Info(f.logg.WithField(ctx, "wallet", wallet.PublicKey()), "payment.wallet.connected")
	return f.stateLocked(), nil
}

func (f *Flow) connect(ctx context.Context, connector WalletConnector) (Wallet, WalletConnector, error) {
	if connector == nil {
		loaded, err := f.wallets(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load wallet: %w", err)
		}
		if loaded == nil {
			return nil, nil, fmt.Errorf("load wallet: no connector")
		}
		connector = loaded
	}
	wallet, err := connector.Connect(ctx)
	if err != nil {
		return nil, connector, err
	}
	if wallet == nil || strings.TrimSpace(wallet.PublicKey()) == "" {
		return nil, connector, fmt.Errorf("wallet returned no public key")
	}
	return wallet, connector, nil
}

// Submit pays for the cart. The steps run strictly in order: balance check,
// build, sign, submit, confirm, booking. Only one submission runs at a time,
// and only while the wizard is on the payment step.
func (f *Flow) Submit(ctx context.Context) (State, error) {
	f.mu.Lock()
	if f.closed {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, pkgerrors.New(pkgerrors.CodeConflict, "checkout is closed")
	}
	if f.phase.IsProcessing() {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, pkgerrors.New(pkgerrors.CodeConflict, "a payment submission is already in progress")
	}
	if f.phase == enums.SubmissionSucceeded {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, pkgerrors.New(pkgerrors.CodeConflict, "payment already completed")
	}
	// read first so a reset racing this snapshot leaves it stale, never mixed
	generation := f.wizard.Generation()
	if step := f.wizard.Step(); step != checkout.StepPayment {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment is only accepted on the payment step, checkout is on %s", step)
	}
	if f.wallet == nil {
		f.phase = enums.SubmissionAwaitingWalletConnection
		f.status = StatusConnectWallet
		state := f.stateLocked()
		f.mu.Unlock()
		return state, pkgerrors.New(pkgerrors.CodeValidation, StatusConnectWallet)
	}
	if f.phase == enums.SubmissionFailed {
		f.phase = enums.SubmissionIdle
	}

	wallet := f.wallet
	pending := f.pending
	var run attempt
	if pending == nil {
		var err error
		if run, err = f.snapshotLocked(generation); err != nil {
			state := f.stateLocked()
			f.mu.Unlock()
			return state, err
		}
		f.phase = enums.SubmissionBuilding
	} else {
		run = attempt{generation: pending.generation, token: pending.receipt.Token}
		f.phase = enums.SubmissionRecording
	}
	f.status = StatusSending
	f.mu.Unlock()

	// the HTTP request may end before the chain settles
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.deadline)
	defer cancel()
	runCtx = f.logg.WithFields(runCtx, map[string]any{"token": run.token.String(), "wallet": wallet.PublicKey()})

	started := time.Now()
	var receipt Receipt
	if pending != nil {
		receipt = pending.receipt
		f.logg.Info(f.logg.WithSignature(runCtx, receipt.Signature), "payment.booking.retry")
	} else {
		var stage string
		var err error
		receipt, stage, err = f.pay(runCtx, wallet, run)
		if err != nil {
			return f.fail(runCtx, run.token, stage, err, started)
		}
	}

	booking, err := f.bookings.CreateBooking(runCtx, receipt.Booking)
	if err != nil {
		f.recordBookingFailed(runCtx, receipt, err)
		f.mu.Lock()
		f.pending = &pendingBooking{receipt: receipt, generation: run.generation}
		f.signature = receipt.Signature
		f.mu.Unlock()
		return f.fail(runCtx, run.token, stageBooking, err, started)
	}
	receipt.BookingID = booking.ID
	f.recordBooked(runCtx, receipt)
	return f.succeed(runCtx, run, receipt, started)
}

// snapshotLocked fixes the cart lines, the charge and the billing details of
// a new submission. The charge is derived from the same lines that are booked.
func (f *Flow) snapshotLocked(generation uint64) (attempt, error) {
	billing := f.wizard.Billing()
	if missing := billing.Missing(); len(missing) > 0 {
		return attempt{}, pkgerrors.New(pkgerrors.CodeStateConflict, "billing details are incomplete")
	}
	items := f.cart.Items()
	order := f.orderForLocked(cart.TotalCentsOf(items))
	if order.BaseUnits == 0 {
		return attempt{}, pkgerrors.New(pkgerrors.CodeValidation, "nothing to pay for")
	}
	return attempt{
		generation: generation,
		token:      f.token,
		order:      order,
		items:      items,
		billing:    billing,
	}, nil
}

// pay runs the on-chain part and returns the confirmed receipt.
func (f *Flow) pay(ctx context.Context, wallet Wallet, run attempt) (Receipt, string, error) {
	token, order := run.token, run.order
	owner := wallet.PublicKey()
	units, err := f.chain.Balance(ctx, owner, token)
	if err != nil {
		return Receipt{}, stageBalance, err
	}
	available := decimal.New(int64(units), -token.Decimals())
	f.mu.Lock()
	f.balance = &available
	f.mu.Unlock()
	if units < order.BaseUnits {
		return Receipt{}, stageBalance, insufficient(token, order.TokenAmount, available)
	}

	unsigned, err := f.chain.BuildTransfer(ctx, TransferRequest{Token: token, From: owner, To: f.business, Amount: order.BaseUnits})
	if err != nil {
		return Receipt{}, stageBuild, err
	}

	if !f.advancePhase(enums.SubmissionAwaitingSignature) {
		return Receipt{}, stageSign, errClosed
	}
	signed, err := wallet.SignTransfer(ctx, unsigned)
	if err != nil {
		return Receipt{}, stageSign, err
	}

	if !f.advancePhase(enums.SubmissionSubmitting) {
		return Receipt{}, stageSubmit, errClosed
	}
	signature, err := f.chain.Submit(ctx, signed)
	if err != nil {
		return Receipt{}, stageSubmit, err
	}

	f.advancePhase(enums.SubmissionConfirming)
	if err := f.chain.Confirm(ctx, signature); err != nil {
		return Receipt{}, stageConfirm, err
	}
	f.logg.Info(f.logg.WithSignature(ctx, signature), "payment.transfer.confirmed")
	f.advancePhase(enums.SubmissionRecording)

	req := backend.BookingRequest{
		CustomerWalletAddress: owner,
		WatchItems:            bookingItems(run.items),
		Discount:              0,
		USDValue:              order.USDValue.InexactFloat64(),
		ShipmentAddress:       run.billing.ShipmentAddress(),
		SenderWallet:          owner,
		ReceiverWallet:        f.business,
		PaymentType:           token.String(),
		TransactionHash:       signature,
		PaymentStatus:         bookingPaymentStatus,
	}
	return Receipt{
		SessionID:   f.sessionID,
		Signature:   signature,
		Token:       token,
		TokenAmount: order.TokenAmount,
		USDValue:    order.USDValue,
		Sender:      owner,
		Receiver:    f.business,
		Booking:     req,
	}, "", nil
}

var errClosed = fmt.Errorf("checkout closed")

// advancePhase moves to the next processing phase unless the flow closed.
func (f *Flow) advancePhase(phase enums.SubmissionPhase) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.phase = phase
	return true
}

func (f *Flow) fail(ctx context.Context, token enums.PaymentToken, stage string, err error, started time.Time) (State, error) {
	f.metrics.IncStageFailure(stage)
	f.metrics.ObserveSubmission(token.String(), "failed", time.Since(started))
	f.logg.Error(f.logg.WithField(ctx, "stage", stage), "payment.submit.failed", err)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.stateLocked(), pkgerrors.Wrap(pkgerrors.CodeConflict, err, "checkout is closed")
	}
	f.phase = enums.SubmissionFailed
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficient {
		f.status = typed.Message()
		return f.stateLocked(), typed
	}
	f.status = statusFailurePrefix + errorText(err)
	return f.stateLocked(), pkgerrors.Wrap(pkgerrors.CodePayment, err, f.status)
}

func (f *Flow) succeed(ctx context.Context, run attempt, receipt Receipt, started time.Time) (State, error) {
	f.metrics.ObserveSubmission(run.token.String(), "succeeded", time.Since(started))
	f.logg.Info(f.logg.WithFields(ctx, map[string]any{"signature": receipt.Signature, "booking_id": receipt.BookingID}), "payment.submit.succeeded")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	f.signature = receipt.Signature
	if f.closed {
		return f.stateLocked(), nil
	}
	if !f.wizard.RecordPaymentSignature(run.generation, receipt.Signature) {
		// the receipt and booking stand; the checkout now on screen is unpaid
		f.logg.Warn(f.logg.WithSignature(ctx, receipt.Signature), "payment.result.stale")
		f.phase = enums.SubmissionIdle
		f.status = ""
		f.signature = ""
		return f.stateLocked(), pkgerrors.Newf(pkgerrors.CodeConflict, "checkout was restarted before the payment settled; the transfer %s is booked for the previous order", receipt.Signature).
			WithDetails(map[string]string{"signature": receipt.Signature, "bookingId": receipt.BookingID})
	}
	f.phase = enums.SubmissionSucceeded
	f.status = statusSuccessPrefix + receipt.Signature
	if f.cancelAdvance != nil {
		f.cancelAdvance()
	}
	f.cancelAdvance = f.schedule(f.delay, f.advance)
	return f.stateLocked(), nil
}

// advance moves the wizard to confirmation once the success message was shown.
func (f *Flow) advance() {
	f.mu.Lock()
	closed := f.closed
	f.cancelAdvance = nil
	f.mu.Unlock()
	if closed {
		return
	}
	ctx := f.logg.WithSessionID(context.Background(), f.sessionID)
	if err := f.wizard.NextFrom(ctx, checkout.StepPayment); err != nil {
		f.logg.Error(ctx, "payment.advance.failed", err)
	}
}

func (f *Flow) recordBooked(ctx context.Context, receipt Receipt) {
	if f.receipts == nil {
		return
	}
	if err := f.receipts.RecordBooked(ctx, receipt); err != nil {
		f.logg.Error(f.logg.WithSignature(ctx, receipt.Signature), "payment.receipt.write_failed", err)
	}
}

func (f *Flow) recordBookingFailed(ctx context.Context, receipt Receipt, cause error) {
	if f.receipts == nil {
		return
	}
	if err := f.receipts.RecordBookingFailed(ctx, receipt, cause); err != nil {
		f.logg.Error(f.logg.WithSignature(ctx, receipt.Signature), "payment.receipt.write_failed", err)
	}
}

// Reset prepares the flow for a new checkout. The wallet stays connected.
// A confirmed transfer still waiting for its booking is kept.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.phase.IsProcessing() {
		return
	}
	if f.cancelAdvance != nil {
		f.cancelAdvance()
		f.cancelAdvance = nil
	}
	f.phase = enums.SubmissionIdle
	f.status = ""
	if f.pending == nil {
		f.signature = ""
	}
}

// Processing reports whether a submission is in flight.
func (f *Flow) Processing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase.IsProcessing()
}

// Close stops the pending advance. Results that arrive later are dropped.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.cancelAdvance != nil {
		f.cancelAdvance()
		f.cancelAdvance = nil
	}
}

func insufficient(token enums.PaymentToken, required, available decimal.Decimal) error {
	msg := fmt.Sprintf("Insufficient %s balance. Required: %s, Available: %s", token, money.FormatToken(required), money.FormatToken(available))
	return pkgerrors.New(pkgerrors.CodeInsufficient, msg).WithDetails(map[string]string{
		"token":     token.String(),
		"required":  money.FormatToken(required),
		"available": money.FormatToken(available),
	})
}

func bookingItems(items []cart.Item) []backend.BookingItem {
	out := make([]backend.BookingItem, 0, len(items))
	for _, item := range items {
		out = append(out, backend.BookingItem{
			ID:             item.ID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			ImageURL:       item.ImageURL,
			BrandName:      item.BrandName,
		})
	}
	return out
}

func copyPrices(in Prices) Prices {
	out := make(Prices, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// errorText is the shopper-facing reason for err.
func errorText(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		msg := typed.Message()
		if cause := typed.Unwrap(); cause != nil {
			msg = msg + ": " + errorText(cause)
		}
		return msg
	}
	return err.Error()
}
