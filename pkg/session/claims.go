package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var ErrNoToken = errors.New("not logged in")

var tokenAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256,
	jose.HS384,
	jose.HS512,
	jose.RS256,
	jose.ES256,
}

type Claims struct {
	Subject  string
	IssuedAt time.Time
	Expiry   time.Time
}

// Expired reports whether the token expiry has passed at now. Tokens without
// an exp claim never expire locally.
func (c Claims) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// ParseClaims reads the claims of an access token without verifying its
// signature. The API server verifies tokens; this is for display only.
func ParseClaims(raw string) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, tokenAlgorithms)
	if err != nil {
		return Claims{}, err
	}

	var std jwt.Claims
	if err := tok.UnsafeClaimsWithoutVerification(&std); err != nil {
		return Claims{}, err
	}

	c := Claims{Subject: std.Subject}
	if std.Expiry != nil {
		c.Expiry = std.Expiry.Time()
	}
	if std.IssuedAt != nil {
		c.IssuedAt = std.IssuedAt.Time()
	}
	return c, nil
}

func (s *Session) Claims(ctx context.Context) (Claims, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return Claims{}, err
	}
	if token == "" {
		return Claims{}, ErrNoToken
	}
	return ParseClaims(token)
}
