package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleAdmin is the only role the console issues tokens for.
	RoleAdmin = "admin"
	// Audience scopes console tokens away from any other service sharing the secret.
	Audience = "watchfi-console"
)

var (
	ErrMissingUsername = errors.New("username is required")
	ErrRoleNotAllowed  = errors.New("token role is not allowed")
)

type AccessTokenPayload struct {
	Username string
	// JTI binds the token to its refresh grant; a fresh id is generated when empty.
	JTI string
}

// AccessTokenClaims is what the console bearer token carries.
type AccessTokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during a full parse.
func (c AccessTokenClaims) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrMissingUsername
	}
	if c.Role != RoleAdmin {
		return ErrRoleNotAllowed
	}
	return nil
}
