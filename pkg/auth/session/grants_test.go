package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/watchfi/storefront/pkg/config"
	redisclient "github.com/watchfi/storefront/pkg/redis"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "watchfi", ExpirationMinutes: 15, RefreshTokenTTLMin: 60}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *redisclient.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	manager, err := NewManager(client, testJWT)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager, mr, client
}

func TestOpenStoresHashedRefreshToken(t *testing.T) {
	manager, mr, client := newTestManager(t)

	grant, err := manager.Open(context.Background(), " curator ")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if grant.Username != "curator" || grant.AccessID == "" || grant.RefreshToken == "" {
		t.Fatalf("unexpected grant %+v", grant)
	}

	raw, err := mr.Get(client.AccessSessionKey(grant.AccessID))
	if err != nil {
		t.Fatalf("expected stored grant: %v", err)
	}
	if strings.Contains(raw, grant.RefreshToken) {
		t.Fatalf("refresh token stored in clear: %s", raw)
	}
	if ttl := mr.TTL(client.AccessSessionKey(grant.AccessID)); ttl != time.Hour {
		t.Fatalf("expected 1h ttl got %s", ttl)
	}
}

func TestRotateIssuesNewGrantAndDropsOld(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	grant, err := manager.Open(ctx, "curator")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := manager.Rotate(ctx, grant.AccessID, "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token, got %v", err)
	}

	next, err := manager.Rotate(ctx, grant.AccessID, grant.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.AccessID == grant.AccessID || next.RefreshToken == grant.RefreshToken {
		t.Fatalf("expected a fresh grant, got %+v", next)
	}
	if next.Username != "curator" {
		t.Fatalf("expected username carried over, got %q", next.Username)
	}

	ok, err := manager.HasSession(ctx, grant.AccessID)
	if err != nil || ok {
		t.Fatalf("old grant still live ok=%v err=%v", ok, err)
	}
	if _, err := manager.Rotate(ctx, grant.AccessID, grant.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestRevokeAndHasSession(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	grant, err := manager.Open(ctx, "curator")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ok, err := manager.HasSession(ctx, grant.AccessID)
	if err != nil || !ok {
		t.Fatalf("expected live session ok=%v err=%v", ok, err)
	}
	if err := manager.Revoke(ctx, grant.AccessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, grant.AccessID)
	if err != nil || ok {
		t.Fatalf("expected revoked session ok=%v err=%v", ok, err)
	}
	if err := manager.Revoke(ctx, grant.AccessID); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}
}

func TestNewManagerRejectsShortRefreshTTL(t *testing.T) {
	client := redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}))
	cfg := testJWT
	cfg.RefreshTokenTTLMin = 10
	if _, err := NewManager(client, cfg); err == nil {
		t.Fatalf("expected error when refresh ttl is below access ttl")
	}
	if _, err := NewManager(nil, testJWT); err == nil {
		t.Fatalf("expected error without client")
	}
}
