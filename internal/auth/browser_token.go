package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid browser token")

// BrowserTokens issues and verifies signed tokens identifying a browser.
// The browser id scopes the session record the way origin storage scopes it
// in a single browser.
type BrowserTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewBrowserTokens creates a manager with the provided secret, issuer, and lifetime.
func NewBrowserTokens(secret, issuer string, ttl time.Duration) *BrowserTokens {
	return &BrowserTokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a new browser id and its signed token.
func (b *BrowserTokens) Issue() (browserID, token string, err error) {
	browserID = uuid.NewString()
	token, err = b.Sign(browserID)
	return browserID, token, err
}

// Sign returns a signed token for an existing browser id.
func (b *BrowserTokens) Sign(browserID string) (string, error) {
	now := b.now()
	claims := jwt.RegisteredClaims{
		Issuer:    b.issuer,
		Subject:   browserID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("sign browser token: %w", err)
	}
	return signed, nil
}

// Verify returns the browser id carried by token.
func (b *BrowserTokens) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(b.issuer),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// TTL is the lifetime of issued tokens.
func (b *BrowserTokens) TTL() time.Duration {
	return b.ttl
}
