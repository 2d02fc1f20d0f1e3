package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	"github.com/watchfi/storefront/internal/cart"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/money"
)

type cartResponse struct {
	Items      []cart.Item `json:"items"`
	TotalItems int         `json:"totalItems"`
	TotalCents int64       `json:"totalCents"`
	TotalPrice float64     `json:"totalPrice"`
	Total      string      `json:"total"`
	IsEmpty    bool        `json:"isEmpty"`
}

type addCartItemRequest struct {
	CollectionID string `json:"collectionId" validate:"required,max=64"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=99"`
}

func newCartResponse(store *cart.Store) cartResponse {
	return cartResponse{
		Items:      store.Items(),
		TotalItems: store.TotalItems(),
		TotalCents: store.TotalCents(),
		TotalPrice: store.TotalPrice(),
		Total:      money.FormatUSD(store.Total()),
		IsEmpty:    store.IsEmpty(),
	}
}

func CartGet(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newCartResponse(sess.Cart))
	}
}

// CartAddItem adds one unit of a watch. Price and display fields are read
// from the catalogue.
func CartAddItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body addCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := sess.AddCollection(r.Context(), body.CollectionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"item": item,
			"cart": newCartResponse(sess.Cart),
		})
	}
}

// CartUpdateItem sets a line quantity; zero removes the line.
func CartUpdateItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *body.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(sess.Cart))
	}
}

// CartRemoveItem drops every line with the id; absent ids are a no-op.
func CartRemoveItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if err := sess.RemoveItem(r.Context(), chi.URLParam(r, "id")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(sess.Cart))
	}
}

func CartClear(logg *logger.Logger) http.HandlerFunc {
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
		if err := requireConfirm(body, "clearing the cart"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sess.ClearCart(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(sess.Cart))
	}
}
