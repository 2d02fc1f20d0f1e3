package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	"github.com/watchfi/storefront/internal/checkout"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/geo"
	"github.com/watchfi/storefront/pkg/logger"
)

type nextRequest struct {
	FromStep *int `json:"fromStep" validate:"required,min=1,max=4"`
}

type billingRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	CountryCode *string `json:"countryCode" validate:"omitempty,max=3"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	City        *string `json:"city" validate:"omitempty,max=255"`
}

func (b billingRequest) values() map[checkout.Field]string {
	out := map[checkout.Field]string{}
	set := func(f checkout.Field, v *string) {
		if v != nil {
			out[f] = *v
		}
	}
	set(checkout.FieldName, b.Name)
	set(checkout.FieldPhone, b.Phone)
	set(checkout.FieldCountryCode, b.CountryCode)
	set(checkout.FieldAddress, b.Address)
	set(checkout.FieldCity, b.City)
	return out
}

type citiesResponse struct {
	CountryCode string     `json:"countryCode"`
	Cities      []geo.City `json:"cities"`
	Status      string     `json:"status,omitempty"`
}

type countriesResponse struct {
	Countries []geo.Country `json:"countries"`
	Status    string        `json:"status,omitempty"`
}

// CheckoutView renders the orchestrator view for the current step.
func CheckoutView(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, sess.View(r.Context()))
	}
}

// CheckoutSetBilling writes each submitted field straight into the wizard.
// Fields apply in form order so a country change resets the city before a
// city in the same request is stored.
func CheckoutSetBilling(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body billingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		values := body.values()
		if len(values) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one billing field is required"))
			return
		}
		for _, field := range checkout.BillingFields() {
			value, present := values[field]
			if !present {
				continue
			}
			if err := sess.Billing.SetField(r.Context(), field, strings.TrimSpace(value)); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, sess.View(r.Context()))
	}
}

func CheckoutNext(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body nextRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := sess.Checkout.Next(r.Context(), checkout.Step(*body.FromStep)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.View(r.Context()))
	}
}

func CheckoutPrevious(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if _, err := sess.PreviousStep(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.View(r.Context()))
	}
}

// CheckoutReset clears the wizard and the payment step after confirmation.
// It is refused while a payment is being processed.
func CheckoutReset(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body confirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.ResetCheckout(r.Context(), body.Confirm); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.View(r.Context()))
	}
}

// GeoCountries loads the country list; the geo capability is fetched on first use.
func GeoCountries(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		countries := sess.Billing.Countries(r.Context())
		responses.WriteSuccess(w, countriesResponse{Countries: countries, Status: sess.Billing.Status()})
	}
}

// GeoCities lists the cities of the selected country. Selecting the country
// is a billing write, so the path country must match it.
func GeoCities(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		iso := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "iso")))
		if selected := sess.Checkout.Billing().CountryCode; selected != iso {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeStateConflict, "country %q is not selected", iso).
				WithDetails(map[string]string{"countryCode": selected}))
			return
		}
		cities := sess.Billing.Cities(r.Context())
		responses.WriteSuccess(w, citiesResponse{CountryCode: iso, Cities: cities, Status: sess.Billing.Status()})
	}
}
