package controllers

import (
	"net/http"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	"github.com/watchfi/storefront/internal/payment"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

type paymentMethodRequest struct {
	Token string `json:"token" validate:"required,payment_token"`
}

func PaymentState(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sess.Payment.State())
	}
}

func PaymentSelectMethod(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body paymentMethodRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := sess.Payment.SelectPaymentMethod(body.Token)
		if err != nil {
			writePaymentError(w, r, logg, state, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// PaymentFetchPrices refreshes the oracle quote. It never fails; an oracle
// outage switches to fallback prices.
func PaymentFetchPrices(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sess.Payment.FetchPrices(r.Context()))
	}
}

func PaymentConnectWallet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		state, err := sess.Payment.ConnectWallet(r.Context())
		if err != nil {
			writePaymentError(w, r, logg, state, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// PaymentSubmit runs the whole transfer and booking. Failures carry the
// payment state so the client can render the status line.
func PaymentSubmit(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		state, err := sess.Payment.Submit(r.Context())
		if err != nil {
			writePaymentError(w, r, logg, state, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func writePaymentError(w http.ResponseWriter, r *http.Request, logg *logger.Logger, state payment.State, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	out := pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(map[string]any{"payment": state})
	responses.WriteError(r.Context(), logg, w, out)
}
