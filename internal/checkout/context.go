package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

// CartState is the slice of the cart the wizard needs for step 2.
type CartState interface {
	IsEmpty() bool
}

// Hook runs after the wizard enters a step. Hooks run outside the wizard lock.
type Hook func(ctx context.Context)

type Params struct {
	Cart   CartState
	Logger *logger.Logger
}

// State is a point-in-time copy of the wizard.
type State struct {
	CurrentStep Step        `json:"currentStep"`
	BillingData BillingData `json:"billingData"`
	Signature   string      `json:"paymentSignature,omitempty"`
	IsLoading   bool        `json:"isLoading"`
	Error       string      `json:"error,omitempty"`
}

// Context holds the checkout wizard for one shopper.
type Context struct {
	mu        sync.Mutex
	step      Step
	billing   BillingData
	signature string
	loading   bool
	errMsg    string
	closed    bool
	// generation counts restarts; a late payment result must match it
	generation uint64

	hooks map[Step][]Hook
	cart  CartState
	logg  *logger.Logger
}

func New(params Params) (*Context, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Context{
		step:  StepBilling,
		hooks: map[Step][]Hook{},
		cart:  params.Cart,
		logg:  params.Logger,
	}, nil
}

// OnEnter registers hook to run after every transition into step.
func (c *Context) OnEnter(step Step, hook Hook) {
	if hook == nil || !step.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[step] = append(c.hooks[step], hook)
}

func (c *Context) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Context) Billing() BillingData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.billing
}

func (c *Context) Signature() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signature
}

func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentStep: c.step,
		BillingData: c.billing,
		Signature:   c.signature,
		IsLoading:   c.loading,
		Error:       c.errMsg,
	}
}

// SetField writes a billing input as typed. There is no buffering. Billing
// is only editable on the billing step.
func (c *Context) SetField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.step != StepBilling {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "billing can only be changed on the billing step, checkout is on %s", c.step)
	}
	if !c.billing.set(field, value) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown billing field %q", field)
	}
	return nil
}

// ValidateStep reports whether the shopper may leave step.
func (c *Context) ValidateStep(step Step) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked(step) == nil
}

func (c *Context) validateLocked(step Step) error {
	switch step {
	case StepBilling:
		missing := c.billing.Missing()
		if len(missing) == 0 {
			return nil
		}
		details := map[string]string{}
		labels := make([]string, 0, len(missing))
		for _, f := range missing {
			details[string(f)] = f.Label() + " is required"
			labels = append(labels, f.Label())
		}
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "billing incomplete: %s", strings.Join(labels, ", ")).WithDetails(details)
	case StepReview:
		if c.cart.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}
		return nil
	case StepPayment:
		if c.signature == "" {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not been completed")
		}
		return nil
	case StepConfirmation:
		return nil
	default:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown step %d", int(step))
	}
}

// Next advances one step when the current step validates. from is the step
// the caller saw; if the wizard already moved on the call is a no-op.
func (c *Context) Next(ctx context.Context, from Step) (Step, error) {
	c.mu.Lock()
	if c.closed || from != c.step {
		step := c.step
		c.mu.Unlock()
		return step, nil
	}
	if err := c.validateLocked(c.step); err != nil {
		step := c.step
		c.mu.Unlock()
		return step, err
	}
	prev := c.step
	c.step = clamp(c.step + 1)
	entered, hooks := c.transitionLocked(prev)
	c.mu.Unlock()

	c.runHooks(ctx, entered, hooks)
	return entered, nil
}

// Previous goes back one step without validation. Confirmation is terminal.
func (c *Context) Previous(ctx context.Context) Step {
	c.mu.Lock()
	if c.closed || c.step == StepConfirmation {
		step := c.step
		c.mu.Unlock()
		return step
	}
	prev := c.step
	c.step = clamp(c.step - 1)
	entered, hooks := c.transitionLocked(prev)
	c.mu.Unlock()

	c.runHooks(ctx, entered, hooks)
	return entered
}

// Reset clears billing data and returns to step 1. The shopper must confirm.
func (c *Context) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return pkgerrors.New(pkgerrors.CodeValidation, "reset requires confirmation")
	}
	c.restart(ctx)
	return nil
}

// StartNew begins a fresh checkout once the previous one reached
// confirmation. It reports whether a reset happened.
func (c *Context) StartNew(ctx context.Context) bool {
	c.mu.Lock()
	done := c.step == StepConfirmation && !c.closed
	c.mu.Unlock()
	if !done {
		return false
	}
	c.restart(ctx)
	return true
}

func (c *Context) restart(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.step
	c.step = StepBilling
	c.billing = BillingData{}
	c.signature = ""
	c.generation++
	c.errMsg = ""
	c.loading = false
	entered, hooks := c.transitionLocked(prev)
	c.mu.Unlock()

	c.runHooks(ctx, entered, hooks)
}

// Generation identifies the current checkout. Every reset starts a new one.
func (c *Context) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// RecordPaymentSignature marks the payment step of checkout generation as
// satisfied. It reports false, and records nothing, when that checkout was
// reset or the wizard is no longer on the payment step.
func (c *Context) RecordPaymentSignature(generation uint64, signature string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || generation != c.generation || c.step != StepPayment {
		return false
	}
	c.signature = strings.TrimSpace(signature)
	return true
}

// NextFrom is Next for callers that only care whether the wizard moved.
func (c *Context) NextFrom(ctx context.Context, from Step) error {
	_, err := c.Next(ctx, from)
	return err
}

func (c *Context) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.loading = loading
}

func (c *Context) SetError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.errMsg = msg
}

// Close detaches the wizard. Later mutations are ignored.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) transitionLocked(prev Step) (Step, []Hook) {
	if prev == c.step {
		return c.step, nil
	}
	hooks := make([]Hook, len(c.hooks[c.step]))
	copy(hooks, c.hooks[c.step])
	return c.step, hooks
}

func (c *Context) runHooks(ctx context.Context, step Step, hooks []Hook) {
	if len(hooks) == 0 {
		return
	}
	c.logg.Debug(c.logg.WithField(ctx, "step", int(step)), "checkout.step.entered")
	for _, hook := range hooks {
		hook(ctx)
	}
}
