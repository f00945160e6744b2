// Package auth implements account registration, login, and bearer token
// handling for the SkyKeeper API. Tokens are stateless HS256 JWTs; the
// token service doubles as the chassis Authenticator.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"skykeeper/internal/types"
)

// Claims carries the JWT payload for an authenticated user. The subject
// registered claim holds the user id; Name is included so the API can
// address the user without a database round trip.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  types.Clock
}

// NewTokenService creates a TokenService signing with the given secret.
// If clock is nil, the real clock is used.
func NewTokenService(secret string, ttl time.Duration, clock types.Clock) *TokenService {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
	}
}

// Issue creates a signed token for the given user. Returns the token string
// and its expiry time.
func (s *TokenService) Issue(user *types.User) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to sign token", err)
	}

	return signed, expiresAt, nil
}

// ResolveToken verifies a bearer token and returns the Actor it represents.
// It satisfies the API chassis Authenticator interface.
//
// Error codes:
//   - auth_token_expired: the token's exp claim is in the past.
//   - auth_token_invalid: bad signature, wrong algorithm, or malformed token.
func (s *TokenService) ResolveToken(ctx context.Context, tokenString string) (*types.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than HMAC to prevent
		// algorithm confusion attacks.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil)
	}

	return &types.Actor{
		ID:   claims.Subject,
		Name: claims.Name,
	}, nil
}
