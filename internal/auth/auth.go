// Package auth turns a bearer token into a verified identity. Identity is
// issued elsewhere; this service only checks signatures and reads the
// subject and role claims.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleSeller, RoleDelivery, RoleAdmin:
		return r, true
	}
	return "", false
}

type Identity struct {
	UserID string
	Role   Role
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(raw string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, apperr.Auth("unauthorized", "token verification is not configured")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, apperr.Auth("missing_token", "missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Auth("token_expired", "token expired")
		}
		return Identity{}, apperr.Auth("invalid_token", "invalid token")
	}

	role, ok := ParseRole(claims.Role)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, apperr.Auth("invalid_token", "token lacks subject or role")
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

// Issue signs a token for id. The service itself never logs anyone in; this
// exists for local tooling and tests.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
