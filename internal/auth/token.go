// Package auth issues and verifies the session tokens carried in the
// accessToken cookie.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// CookieName is the HTTP-only cookie holding the session token.
const CookieName = "accessToken"

const issuer = "campus-events"

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a token issuer. now may be nil.
func NewTokens(secret string, ttl time.Duration, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: now}
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for user.
func (t *Tokens) Issue(user model.User) (string, error) {
	now := t.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Email: user.Email,
		Role:  string(user.Role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns the actor it names.
func (t *Tokens) Verify(token string) (model.Actor, error) {
	if token == "" {
		return model.Actor{}, apperr.New(apperr.CodeUnauthenticated, "no token cookie")
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return model.Actor{}, apperr.Wrap(apperr.CodeUnauthenticated, msg, err)
	}
	role, ok := model.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return model.Actor{}, apperr.New(apperr.CodeUnauthenticated, "invalid token claims")
	}
	return model.Actor{ID: claims.Subject, Email: claims.Email, Role: role}, nil
}
