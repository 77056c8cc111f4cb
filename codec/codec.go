// Package codec signs and verifies the bearer tokens handed out for library access.
//
// A token is an HS256 JWT carrying the email address as its 'sub' claim and a unique 'jti'.
// Depending on configuration the token either carries its own 'exp' claim (self-expiring) or
// relies entirely on the ledger's expiry column.
package codec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

var (
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
)

// Codec is safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Codec) error

// WithExpiry makes issued tokens self-expiring after ttl, independently of the ledger.
func WithExpiry(ttl time.Duration) Option {
	return func(c *Codec) error {
		if ttl <= 0 {
			return fmt.Errorf("invalid token expiry (%v)", ttl)
		}

		c.ttl = ttl
		return nil
	}
}

// WithClock replaces the wall clock used for 'iat' and 'exp'.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) error {
		if now == nil {
			return fmt.Errorf("invalid clock")
		}

		c.now = now
		return nil
	}
}

func New(secret string, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("missing signing secret")
	}

	c := Codec{
		secret: []byte(secret),
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// SelfExpiring returns true if tokens carry their own expiry claim.
func (c *Codec) SelfExpiring() bool {
	return c.ttl > 0
}

func (c *Codec) Sign(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("missing token subject")
	}

	now := c.now()
	claims := jwt.RegisteredClaims{
		ID:       ulid.Make().String(),
		Subject:  email,
		IssuedAt: jwt.NewNumericDate(now),
	}

	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token (%w)", err)
	}

	return token, nil
}

// Verify checks the signature (and the expiry claim, if present) and returns the embedded
// email address.
func (c *Codec) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims

	keyfunc := func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}

	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now))

	switch {
	case err == nil:

	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired

	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "", ErrSignatureInvalid

	default:
		return "", fmt.Errorf("%w (%v)", ErrMalformed, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w (missing subject)", ErrMalformed)
	}

	return claims.Subject, nil
}
