package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/watchfi/storefront/pkg/config"
	redisclient "github.com/watchfi/storefront/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Grant is what a caller needs to mint an access token for an open console session.
type Grant struct {
	AccessID     string
	RefreshToken string
	Username     string
}

// grantRecord is the stored form. The refresh token itself never reaches redis.
type grantRecord struct {
	Username    string    `json:"username"`
	RefreshHash string    `json:"refresh_hash"`
	OpenedAt    time.Time `json:"opened_at"`
}

type grantStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager keeps console refresh grants in redis, keyed by access token id.
type Manager struct {
	store grantStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager constructs a grant manager backed by redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(store grantStore, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Open starts a console session for username.
func (m *Manager) Open(ctx context.Context, username string) (Grant, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Grant{}, fmt.Errorf("username is required")
	}
	return m.open(ctx, username)
}

// Rotate trades a refresh token for a fresh grant. The old access id stops
// being valid even when storing the new grant fails.
func (m *Manager) Rotate(ctx context.Context, accessID, refreshToken string) (Grant, error) {
	if strings.TrimSpace(accessID) == "" || strings.TrimSpace(refreshToken) == "" {
		return Grant{}, ErrInvalidRefreshToken
	}

	key := m.store.AccessSessionKey(accessID)
	var rec grantRecord
	found, err := m.store.GetJSON(ctx, key, &rec)
	if err != nil {
		return Grant{}, err
	}
	if !found {
		return Grant{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.RefreshHash), []byte(hashRefreshToken(refreshToken))) != 1 {
		return Grant{}, ErrInvalidRefreshToken
	}
	if err := m.store.Del(ctx, key); err != nil {
		return Grant{}, err
	}
	return m.open(ctx, rec.Username)
}

// Revoke closes the session tied to accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a live grant.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	return m.store.Exists(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) open(ctx context.Context, username string) (Grant, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return Grant{}, err
	}
	grant := Grant{AccessID: NewAccessID(), RefreshToken: token, Username: username}
	rec := grantRecord{
		Username:    username,
		RefreshHash: hashRefreshToken(token),
		OpenedAt:    m.now().UTC(),
	}
	if err := m.store.SetJSON(ctx, m.store.AccessSessionKey(grant.AccessID), rec, m.ttl); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// NewAccessID produces the identifier used as the JWT jti and redis key.
func NewAccessID() string {
	return uuid.NewString()
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
