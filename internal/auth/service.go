package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgAuth "github.com/watchfi/storefront/pkg/auth"
	"github.com/watchfi/storefront/pkg/auth/session"
	"github.com/watchfi/storefront/pkg/config"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service is the console authentication surface used by the admin controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*TokenPair, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

type grantManager interface {
	Open(ctx context.Context, username string) (session.Grant, error)
	Rotate(ctx context.Context, accessID, refreshToken string) (session.Grant, error)
	Revoke(ctx context.Context, accessID string) error
}

type service struct {
	admin  config.AdminConfig
	grants grantManager
	jwtCfg config.JWTConfig
	logg   *logger.Logger
	now    func() time.Time
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Admin          config.AdminConfig
	SessionManager grantManager
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// NewService constructs the console auth service. The operator credential
// comes from configuration; there is no user table.
func NewService(params ServiceParams) (Service, error) {
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if strings.TrimSpace(params.Admin.Username) == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	svc := &service{
		admin:  params.Admin,
		grants: params.SessionManager,
		jwtCfg: params.JWTConfig,
		logg:   params.Logger,
		now:    params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	username, err := s.authenticate(req.Username, req.Password)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "admin.login.rejected")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	grant, err := s.grants.Open(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open console session")
	}
	pair, err := s.mint(grant)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithAdmin(ctx, username), "admin.login.ok")
	return pair, nil
}

// Refresh accepts an expired access token; only its signature and jti matter.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := s.sessionClaims(accessToken)
	if err != nil {
		return nil, err
	}
	grant, err := s.grants.Rotate(ctx, claims.ID, refreshToken)
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate console session")
	}
	return s.mint(grant)
}

func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.sessionClaims(accessToken)
	if err != nil {
		return err
	}
	if err := s.grants.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke console session")
	}
	s.logg.Info(s.logg.WithAdmin(ctx, claims.Username), "admin.logout")
	return nil
}

func (s *service) sessionClaims(accessToken string) (*pkgAuth.AccessTokenClaims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

func (s *service) mint(grant session.Grant) (*TokenPair, error) {
	now := s.now().UTC()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		Username: grant.Username,
		JTI:      grant.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: grant.RefreshToken,
		Username:     grant.Username,
		ExpiresAt:    now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
	}, nil
}

// authenticate returns a reason on failure; callers only expose a generic message.
func (s *service) authenticate(username, password string) (string, error) {
	input := strings.ToLower(strings.TrimSpace(username))
	want := strings.ToLower(strings.TrimSpace(s.admin.Username))
	if input == "" || password == "" {
		return "", fmt.Errorf("missing credentials")
	}
	if strings.TrimSpace(s.admin.PasswordHash) == "" {
		return "", fmt.Errorf("admin password hash not configured")
	}
	userOK := subtle.ConstantTimeCompare([]byte(input), []byte(want)) == 1

	// verify even on a username miss so timing does not reveal the operator name
	valid, err := security.VerifyPassword(password, s.admin.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !userOK || !valid {
		return "", fmt.Errorf("credential mismatch")
	}
	return want, nil
}
