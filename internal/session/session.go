// Package session issues and verifies the signed login cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "acervo"

// CookieName is the name of the session cookie
const CookieName = "acervo_session"

// ErrInvalid covers malformed, expired, forged and revoked tokens
var ErrInvalid = errors.New("invalid session")

// Claims is the token payload. Rights are not cached in the token: they are
// reloaded from the profile on every request.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AccountID returns the subject as an account ID
func (c *Claims) AccountID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Manager signs and validates session tokens
type Manager struct {
	signingKey []byte
	ttl        time.Duration
	revoked    RevocationList
	now        func() time.Time
}

// NewManager creates a Manager. revoked may be nil to disable logout
// revocation checks.
func NewManager(secret string, ttl time.Duration, revoked RevocationList) *Manager {
	return &Manager{
		signingKey: []byte(secret),
		ttl:        ttl,
		revoked:    revoked,
		now:        time.Now,
	}
}

// TTL is how long an issued token stays valid
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs a token for the account
func (m *Manager) Issue(accountID int64, username string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Parse validates the token and checks it has not been revoked
func (m *Manager) Parse(ctx context.Context, raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalid)
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrInvalid)
		}
	}
	return claims, nil
}

// Revoke invalidates the token until it would have expired anyway
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoked == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoked.Revoke(ctx, claims.ID, ttl)
}
