package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	"github.com/watchfi/storefront/internal/receipts"
	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/enums"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/pagination"
)

// BookingLister reads the backend bookings.
type BookingLister interface {
	ListBookings(ctx context.Context, q backend.BookingQuery) (backend.BookingPage, error)
}

// ReceiptLedger is the admin view of confirmed payments.
type ReceiptLedger interface {
	List(ctx context.Context, params receipts.ListParams) (*receipts.ListResult, error)
	Verify(ctx context.Context, signature string) (*receipts.ListItem, error)
}

func AdminBookingsList(bookings BookingLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := bookings.ListBookings(r.Context(), backend.BookingQuery{
			Status: validators.SanitizeString(r.URL.Query().Get("status"), 32),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminPaymentsList pages through the receipts ledger, newest first.
func AdminPaymentsList(ledger ReceiptLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		params := receipts.ListParams{
			Status: enums.ReceiptStatus(strings.TrimSpace(q.Get("status"))),
			Params: pagination.Params{Limit: limit, Cursor: strings.TrimSpace(q.Get("cursor"))},
		}
		out, err := ledger.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminPaymentVerify asks the backend to match one receipt against the chain.
func AdminPaymentVerify(ledger ReceiptLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signature := strings.TrimSpace(chi.URLParam(r, "signature"))
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "signature is required"))
			return
		}
		item, err := ledger.Verify(r.Context(), signature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
