package crypto

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(issuer string) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Hour,
		ServiceExpiry: 5 * time.Minute,
		Issuer:        issuer,
	})
}

func TestJWTManager_AccessToken(t *testing.T) {
	m := newTestManager("zyra")

	token, expiresAt, err := m.GenerateAccessToken("ui")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "ui", claims.Subject)
	assert.Equal(t, "zyra", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTManager_ServiceToken(t *testing.T) {
	m := newTestManager("zyra")

	token, err := m.GenerateServiceToken("scheduler")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeService, claims.Type)
	assert.Equal(t, "scheduler", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTManager_RejectsOtherIssuer(t *testing.T) {
	token, err := newTestManager("someone-else").GenerateServiceToken("worker")
	require.NoError(t, err)

	_, err = newTestManager("zyra").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsOtherSecret(t *testing.T) {
	other := NewJWTManager(JWTConfig{Secret: "other-secret", AccessExpiry: time.Hour, Issuer: "zyra"})
	token, _, err := other.GenerateAccessToken("ui")
	require.NoError(t, err)

	_, err = newTestManager("zyra").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "test-secret", AccessExpiry: -time.Minute, Issuer: "zyra"})
	token, _, err := m.GenerateAccessToken("ui")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_RejectsNonHMAC(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "zyra",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestManager("zyra").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_Garbage(t *testing.T) {
	_, err := newTestManager("zyra").ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
