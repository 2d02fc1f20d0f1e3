package controllers

import (
	"context"
	"net/http"

	"github.com/watchfi/storefront/api/middleware"
	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/internal/session"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

// SessionCreator starts a fresh shopper session.
type SessionCreator interface {
	Create(ctx context.Context) (*session.Session, error)
}

type sessionResponse struct {
	SessionID string       `json:"sessionId"`
	View      session.View `json:"view"`
}

// SessionCreate always starts a new session, replacing whatever the client held.
func SessionCreate(creator SessionCreator, opts middleware.SessionOptions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := creator.Create(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		middleware.SetSessionCookie(w, sess.ID, opts)
		w.Header().Set(middleware.SessionHeader, sess.ID)

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, sess.ID)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			SessionID: sess.ID,
			View:      sess.View(ctx),
		})
	}
}

func requireSession(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*session.Session, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session context missing"))
		return nil, false
	}
	return sess, true
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func requireConfirm(body confirmRequest, action string) error {
	if !body.Confirm {
		return pkgerrors.New(pkgerrors.CodeValidation, action+" requires confirmation").
			WithDetails(map[string]string{"confirm": "must be true"})
	}
	return nil
}
