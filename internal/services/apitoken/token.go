// Package apitoken issues and verifies the bearer tokens that guard the API.
package apitoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// MinKeyLength is the shortest accepted signing key in bytes.
const MinKeyLength = 32

// ErrKeyTooShort is returned for signing keys below MinKeyLength.
var ErrKeyTooShort = errors.New("signing key too short")

// Authority signs and verifies HS256 tokens for one issuer.
type Authority struct {
	key    []byte
	issuer string
	clock  clock.Clock
}

// New creates an authority. A nil clock uses wall time.
func New(signingKey, issuer string, clk clock.Clock) (*Authority, error) {
	if len(signingKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Authority{key: []byte(signingKey), issuer: issuer, clock: clk}, nil
}

// Issue signs a token for subject valid for ttl.
func (a *Authority) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := a.clock.Now()
	tok, err := jwt.NewBuilder().
		Issuer(a.issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, a.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Verify parses a token, checks its signature, expiry and issuer, and returns its claims.
func (a *Authority) Verify(tokenString string) (*models.APIClaims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, a.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(a.issuer),
		jwt.WithClock(jwt.ClockFunc(a.clock.Now)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, errors.New("token missing subject claim")
	}

	return &models.APIClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}, nil
}
