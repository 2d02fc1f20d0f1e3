package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	"github.com/watchfi/storefront/pkg/backend"
	"github.com/watchfi/storefront/pkg/logger"
)

// CollectionCatalog is the read side of the backend catalogue.
type CollectionCatalog interface {
	ListCollections(ctx context.Context, q backend.CollectionQuery) (backend.CollectionPage, error)
	GetCollection(ctx context.Context, id string) (backend.Collection, error)
}

// CollectionsList proxies the backend listing with search, brand and paging filters.
func CollectionsList(catalog CollectionCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 12, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		result, err := catalog.ListCollections(r.Context(), backend.CollectionQuery{
			Search:  validators.SanitizeString(q.Get("search"), 100),
			BrandID: validators.SanitizeString(q.Get("brandId"), 64),
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CollectionGet(catalog CollectionCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection, err := catalog.GetCollection(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, collection)
	}
}
