package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfi/storefront/pkg/config"
)

func consoleJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "console-secret", Issuer: "watchfi", ExpirationMinutes: 30}
}

func signRaw(t *testing.T, method jwt.SigningMethod, secret string, claims AccessTokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func adminClaims(cfg config.JWTConfig, exp time.Time) AccessTokenClaims {
	return AccessTokenClaims{
		Username: "admin",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "grant-1",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestMintedTokenRoundTrips(t *testing.T) {
	cfg := consoleJWT()
	now := time.Now().UTC().Truncate(time.Second)

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{Username: " admin ", JTI: "grant-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "grant-1", claims.ID)
	assert.Equal(t, jwt.ClaimStrings{Audience}, claims.Audience)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintFillsMissingJTI(t *testing.T) {
	cfg := consoleJWT()
	first, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Username: "admin"})
	require.NoError(t, err)
	second, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Username: "admin"})
	require.NoError(t, err)

	a, err := ParseAccessToken(cfg, first)
	require.NoError(t, err)
	b, err := ParseAccessToken(cfg, second)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMintRejectsIncompleteInput(t *testing.T) {
	cfg := consoleJWT()
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Username: "  "})
	assert.ErrorIs(t, err, ErrMissingUsername)

	noTTL := cfg
	noTTL.ExpirationMinutes = 0
	_, err = MintAccessToken(noTTL, time.Now(), AccessTokenPayload{Username: "admin"})
	assert.Error(t, err)

	noSecret := cfg
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, time.Now(), AccessTokenPayload{Username: "admin"})
	assert.Error(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	cfg := consoleJWT()
	exp := time.Now().Add(time.Hour)
	valid := signRaw(t, jwt.SigningMethodHS256, cfg.Secret, adminClaims(cfg, exp))

	otherAudience := adminClaims(cfg, exp)
	otherAudience.Audience = jwt.ClaimStrings{"watchfi-storefront"}
	shopper := adminClaims(cfg, exp)
	shopper.Role = "customer"
	otherIssuer := adminClaims(cfg, exp)
	otherIssuer.Issuer = "someone-else"
	noExpiry := adminClaims(cfg, exp)
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"tampered":       valid + "x",
		"wrong secret":   signRaw(t, jwt.SigningMethodHS256, "other", adminClaims(cfg, exp)),
		"hs512":          signRaw(t, jwt.SigningMethodHS512, cfg.Secret, adminClaims(cfg, exp)),
		"other audience": signRaw(t, jwt.SigningMethodHS256, cfg.Secret, otherAudience),
		"non admin role": signRaw(t, jwt.SigningMethodHS256, cfg.Secret, shopper),
		"other issuer":   signRaw(t, jwt.SigningMethodHS256, cfg.Secret, otherIssuer),
		"no expiry":      signRaw(t, jwt.SigningMethodHS256, cfg.Secret, noExpiry),
	}
	for name, token := range cases {
		_, err := ParseAccessToken(cfg, token)
		assert.Error(t, err, name)
	}

	_, err := ParseAccessToken(cfg, valid)
	assert.NoError(t, err)
}

func TestParseReportsExpiry(t *testing.T) {
	cfg := consoleJWT()
	cfg.ExpirationMinutes = 15
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{Username: "admin", JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenExpired))

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "old", claims.ID)
}

func TestParseToleratesClockSkew(t *testing.T) {
	cfg := consoleJWT()
	token := signRaw(t, jwt.SigningMethodHS256, cfg.Secret, adminClaims(cfg, time.Now().Add(-10*time.Second)))

	_, err := ParseAccessToken(cfg, token)
	assert.NoError(t, err)
}

func TestAllowExpiredStillChecksIssuerAndRole(t *testing.T) {
	cfg := consoleJWT()
	past := time.Now().Add(-time.Hour)

	otherIssuer := adminClaims(cfg, past)
	otherIssuer.Issuer = "someone-else"
	_, err := ParseAccessTokenAllowExpired(cfg, signRaw(t, jwt.SigningMethodHS256, cfg.Secret, otherIssuer))
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	shopper := adminClaims(cfg, past)
	shopper.Role = "customer"
	_, err = ParseAccessTokenAllowExpired(cfg, signRaw(t, jwt.SigningMethodHS256, cfg.Secret, shopper))
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = ParseAccessTokenAllowExpired(cfg, signRaw(t, jwt.SigningMethodHS256, "other", adminClaims(cfg, past)))
	assert.Error(t, err)
}
