package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/internal/session"
	"github.com/watchfi/storefront/pkg/logger"
)

const (
	// SessionCookie carries the shopper session id for browsers.
	SessionCookie = "wf_session"
	// SessionHeader carries the shopper session id for API clients.
	SessionHeader = "X-Session-Id"
)

// SessionResolver finds or creates the shopper session for an id.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*session.Session, bool, error)
}

// SessionOptions controls the cookie written for new sessions.
type SessionOptions struct {
	TTL    time.Duration
	Secure bool
}

// Session resolves the shopper session from the cookie or header. Unknown or
// missing ids get a fresh session whose id is echoed back in both.
func Session(resolver SessionResolver, opts SessionOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, created, err := resolver.Resolve(r.Context(), requestSessionID(r))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			if created || r.Header.Get(SessionHeader) == "" {
				SetSessionCookie(w, sess.ID, opts)
			}
			w.Header().Set(SessionHeader, sess.ID)

			ctx := WithSession(r.Context(), sess)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sess.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestSessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// SetSessionCookie writes the browser cookie for a shopper session.
func SetSessionCookie(w http.ResponseWriter, id string, opts SessionOptions) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if opts.TTL > 0 {
		cookie.MaxAge = int(opts.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
}
