package controllers

import (
	"net/http"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	"github.com/watchfi/storefront/pkg/logger"
)

type addSearchRequest struct {
	Term string `json:"term" validate:"required,max=100"`
}

type searchesResponse struct {
	Searches []string `json:"searches"`
}

func SearchesList(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, searchesResponse{Searches: sess.Searches.List()})
	}
}

func SearchesAdd(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var body addSearchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, searchesResponse{Searches: sess.Searches.Add(r.Context(), body.Term)})
	}
}

func SearchesClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		sess.Searches.Clear(r.Context())
		responses.WriteSuccess(w, searchesResponse{Searches: sess.Searches.List()})
	}
}
