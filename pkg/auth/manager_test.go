package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/backend/internal/config"
)

func testManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	manager, err := NewManager(config.JWTConfig{SigningKey: "test-signing-key", AttendeeTokenTTL: ttl})
	require.NoError(t, err)

	return manager
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(config.JWTConfig{SigningKey: "", AttendeeTokenTTL: time.Hour})
	require.Error(t, err)

	_, err = NewManager(config.JWTConfig{SigningKey: "key", AttendeeTokenTTL: 0})
	require.Error(t, err)

	_, err = NewManager(config.JWTConfig{SigningKey: "key", AttendeeTokenTTL: time.Hour})
	require.NoError(t, err)
}

func TestAttendeeTokenRoundTrip(t *testing.T) {
	manager := testManager(t, time.Hour)

	registrationID := uuid.New()
	eventID := uuid.New()

	token, ttl, err := manager.NewAttendeeToken(registrationID, eventID, "dana@corp.com")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	claims, err := manager.ParseAttendeeToken(token)
	require.NoError(t, err)
	assert.Equal(t, registrationID, claims.RegistrationID)
	assert.Equal(t, eventID, claims.EventID)
	assert.Equal(t, "dana@corp.com", claims.Email)
}

func TestAttendeeTokenExpired(t *testing.T) {
	// A negative ttl mints a token that is already past its exp claim.
	manager := testManager(t, -time.Minute)

	token, _, err := manager.NewAttendeeToken(uuid.New(), uuid.New(), "dana@corp.com")
	require.NoError(t, err)

	_, err = manager.ParseAttendeeToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAttendeeTokenWrongKey(t *testing.T) {
	manager := testManager(t, time.Hour)

	other, err := NewManager(config.JWTConfig{SigningKey: "another-key", AttendeeTokenTTL: time.Hour})
	require.NoError(t, err)

	token, _, err := other.NewAttendeeToken(uuid.New(), uuid.New(), "dana@corp.com")
	require.NoError(t, err)

	claims, err := manager.ParseAttendeeToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	assert.Nil(t, claims)
}

func TestAttendeeTokenRejectsUnsignedAlg(t *testing.T) {
	manager := testManager(t, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = manager.ParseAttendeeToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected signing method")
}

func TestAttendeeTokenGarbage(t *testing.T) {
	manager := testManager(t, time.Hour)

	_, err := manager.ParseAttendeeToken("not-a-token")
	require.Error(t, err)
}
