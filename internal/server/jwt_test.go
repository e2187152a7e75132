package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/config"
)

func newTestJWT(now time.Time) *JWTService {
	s := NewJWTService(&config.JWTConfig{Secret: "0123456789abcdef0123", TTL: time.Hour})
	s.now = func() time.Time { return now }
	return s
}

func TestJWTService_RoundTrip(t *testing.T) {
	now := time.Now()
	s := newTestJWT(now)

	token, err := s.GenerateToken("session-1")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.GetSessionID())
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)

	got, err := s.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", got.GetSessionID())
}

func TestJWTService_Rejects(t *testing.T) {
	now := time.Now()
	s := newTestJWT(now)
	token, err := s.GenerateToken("session-1")
	require.NoError(t, err)

	_, err = newTestJWT(now.Add(2*time.Hour)).ValidateToken(token)
	assert.ErrorContains(t, err, "expired")

	other := NewJWTService(&config.JWTConfig{Secret: "another-secret-value", TTL: time.Hour})
	_, err = other.ValidateToken(token)
	assert.ErrorContains(t, err, "signature")

	_, err = s.ValidateToken("not.a.jwt")
	assert.Error(t, err)

	_, err = s.ValidateToken("")
	assert.Error(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{SessionID: "session-1"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.ValidateToken(raw)
	assert.Error(t, err)
}

func TestJWTService_NilValidator(t *testing.T) {
	var s *JWTService
	assert.Nil(t, s.AsTokenValidator())
}
