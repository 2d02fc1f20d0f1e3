package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/watchfi/storefront/pkg/auth"
	"github.com/watchfi/storefront/pkg/auth/session"
	"github.com/watchfi/storefront/pkg/config"
	pkgredis "github.com/watchfi/storefront/pkg/redis"
)

var adminJWT = config.JWTConfig{Secret: "secret", Issuer: "watchfi", ExpirationMinutes: 60, RefreshTokenTTLMin: 120}

func newGrants(t *testing.T) *session.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	grants, err := session.NewManager(pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), adminJWT)
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	return grants
}

func mintFor(t *testing.T, cfg config.JWTConfig, at time.Time, grant session.Grant) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, at, auth.AccessTokenPayload{Username: grant.Username, JTI: grant.AccessID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAdminAuthRejections(t *testing.T) {
	grants := newGrants(t)
	ctx := context.Background()

	live, err := grants.Open(ctx, "curator")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	revoked, _ := grants.Open(ctx, "curator")
	if err := grants.Revoke(ctx, revoked.AccessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	foreign := adminJWT
	foreign.Secret = "other"

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer invalid", http.StatusUnauthorized},
		{"expired", "Bearer " + mintFor(t, adminJWT, time.Now().Add(-2*time.Hour), live), http.StatusUnauthorized},
		{"foreign signature", "Bearer " + mintFor(t, foreign, time.Now(), live), http.StatusUnauthorized},
		{"revoked", "Bearer " + mintFor(t, adminJWT, time.Now(), revoked), http.StatusUnauthorized},
		{"valid", "Bearer " + mintFor(t, adminJWT, time.Now(), live), http.StatusOK},
	}

	handler := AdminAuth(adminJWT, grants, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestAdminAuthSeedsContext(t *testing.T) {
	grants := newGrants(t)
	grant, err := grants.Open(context.Background(), "curator")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var admin, accessID string
	handler := AdminAuth(adminJWT, grants, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin = AdminFromContext(r.Context())
		accessID = AccessIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+mintFor(t, adminJWT, time.Now(), grant))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if admin != "curator" || accessID != grant.AccessID {
		t.Fatalf("unexpected context admin=%q access=%q", admin, accessID)
	}
}

func TestAdminAuthSessionStoreDown(t *testing.T) {
	token := mintFor(t, adminJWT, time.Now(), session.Grant{AccessID: session.NewAccessID(), Username: "curator"})

	handler := AdminAuth(adminJWT, failingChecker{err: errors.New("redis down")}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

type failingChecker struct {
	err error
}

func (f failingChecker) HasSession(context.Context, string) (bool, error) {
	return false, f.err
}
