package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchfi/storefront/internal/session"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
)

type stubResolver struct {
	known map[string]*session.Session
	next  string
	err   error
	seen  []string
}

func (s *stubResolver) Resolve(_ context.Context, id string) (*session.Session, bool, error) {
	s.seen = append(s.seen, id)
	if s.err != nil {
		return nil, false, s.err
	}
	if sess, ok := s.known[id]; ok {
		return sess, false, nil
	}
	return &session.Session{ID: s.next}, true, nil
}

func TestSessionMiddlewareCreatesSessionAndSetsCookie(t *testing.T) {
	resolver := &stubResolver{next: "new-session"}
	var seen string
	handler := Session(resolver, SessionOptions{TTL: time.Hour}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if seen != "new-session" {
		t.Fatalf("expected session in context, got %q", seen)
	}
	if got := rec.Header().Get(SessionHeader); got != "new-session" {
		t.Fatalf("expected session header, got %q", got)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value != "new-session" {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	if cookies[0].MaxAge != 3600 || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookie attributes %+v", cookies[0])
	}
}

func TestSessionMiddlewarePrefersHeaderOverCookie(t *testing.T) {
	known := &session.Session{ID: "from-header"}
	resolver := &stubResolver{known: map[string]*session.Session{"from-header": known}}
	handler := Session(resolver, SessionOptions{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) != known {
			t.Fatalf("expected known session in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(SessionHeader, "from-header")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(resolver.seen) != 1 || resolver.seen[0] != "from-header" {
		t.Fatalf("expected header id to be resolved, got %v", resolver.seen)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("header clients should not receive a cookie")
	}
}

func TestSessionMiddlewareUsesCookie(t *testing.T) {
	known := &session.Session{ID: "from-cookie"}
	resolver := &stubResolver{known: map[string]*session.Session{"from-cookie": known}}
	handler := Session(resolver, SessionOptions{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(resolver.seen) != 1 || resolver.seen[0] != "from-cookie" {
		t.Fatalf("expected cookie id to be resolved, got %v", resolver.seen)
	}
}

func TestSessionMiddlewareStoreFailure(t *testing.T) {
	resolver := &stubResolver{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("redis down"), "lookup session")}
	called := false
	handler := Session(resolver, SessionOptions{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if called {
		t.Fatalf("handler must not run without a session")
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
