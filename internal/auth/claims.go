// Package auth issues and validates the bearer tokens that protect the
// diagnostics API (internal/api). There is no user database or role
// model here: the diagnostics surface is a single trust domain, and a
// valid signature is the only authorization check.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid indicates a bearer token failed signature, expiry, or
// shape validation.
var ErrTokenInvalid = errors.New("auth: invalid token")

// Claims identifies the holder of a diagnostics bearer token. Subject is
// an operator-chosen label (e.g. "ops-dashboard"), not a user id.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a bearer token for subject, valid for ttl, using
// secret (the diagnostics API's configured bearer_token value as an
// HMAC key).
func IssueToken(subject, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing bearer token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString's signature and expiry against
// secret, returning its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}
