// Package auth turns bearer tokens into principals and decides what a principal may do.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trashio/trashio-api/models"
)

const accessTokenType = "access"

// DefaultAccessTokenTTL is used when no positive lifetime is configured
const DefaultAccessTokenTTL = 7 * 24 * time.Hour

// Claims is the payload of an access token
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Type string `json:"typ"`
}

// Tokens signs and verifies HS256 access tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	// Now is swapped in tests
	Now func() time.Time
}

// NewTokens returns a Tokens using the shared secret and access token lifetime
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		Now:    time.Now,
	}
}

// Issue signs a new access token for the subject and role
func (t *Tokens) Issue(subject string, role models.Role) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := t.Now()
	expires := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: string(role),
		Type: accessTokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies the signature and expiry of token and returns its claims.
// Every failure is reported as an InvalidCredential error.
func (t *Tokens) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewError(models.KindInvalidCredential, "missing token")
	}
	if len(t.secret) == 0 {
		return nil, models.NewError(models.KindInvalidCredential, "jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.Now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, &models.WorkflowError{Kind: models.KindInvalidCredential, Message: "invalid token", Err: err}
	}
	if !parsed.Valid {
		return nil, models.NewError(models.KindInvalidCredential, "invalid token")
	}
	if claims.Subject == "" {
		return nil, models.NewError(models.KindInvalidCredential, "subject claim required")
	}
	if claims.Type != accessTokenType {
		return nil, models.NewError(models.KindInvalidCredential, "not an access token")
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
