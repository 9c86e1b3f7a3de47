package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour, NewMemoryRevocationList())

	raw, err := m.Issue(42, "ana")
	require.NoError(t, err)

	claims, err := m.Parse(context.Background(), raw)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "ana", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejectsForgedAndExpired(t *testing.T) {
	ctx := context.Background()
	m := NewManager("secret", time.Hour, nil)

	other := NewManager("other-secret", time.Hour, nil)
	forged, err := other.Issue(1, "mallory")
	require.NoError(t, err)
	_, err = m.Parse(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalid)

	past := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return past }
	expired, err := m.Issue(1, "ana")
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Parse(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Parse(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	m := NewManager("secret", time.Hour, NewMemoryRevocationList())

	raw, err := m.Issue(7, "bia")
	require.NoError(t, err)
	claims, err := m.Parse(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, claims))
	_, err = m.Parse(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalid)

	fresh, err := m.Issue(7, "bia")
	require.NoError(t, err)
	_, err = m.Parse(ctx, fresh)
	assert.NoError(t, err, "a new login is unaffected")
}

func TestMemoryRevocationExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRevocationList()
	now := time.Now()
	l.now = func() time.Time { return now }

	require.NoError(t, l.Revoke(ctx, "jti", time.Minute))
	revoked, _ := l.IsRevoked(ctx, "jti")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = l.IsRevoked(ctx, "jti")
	assert.False(t, revoked)
}
