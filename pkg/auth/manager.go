package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/eventpass/backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager provides logic for attendee token generation and parsing. The
// attendee token is the long-lived credential a completed registration hands
// back, so the attendee can reopen and edit it without re-verification.
type TokenManager interface {
	NewAttendeeToken(registrationID, eventID uuid.UUID, email string) (string, time.Duration, error)
	ParseAttendeeToken(token string) (*AttendeeClaims, error)
}

type AttendeeClaims struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	Email          string
}

type attendeeClaims struct {
	jwt.RegisteredClaims
	EventID string `json:"eventId"`
	Email   string `json:"email"`
}

type Manager struct {
	signingKey       string
	attendeeTokenTTL time.Duration
}

func NewManager(cfg config.JWTConfig) (*Manager, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("empty signing key")
	}

	if cfg.AttendeeTokenTTL == 0 {
		return nil, errors.New("empty attendee token ttl")
	}

	return &Manager{
		signingKey:       cfg.SigningKey,
		attendeeTokenTTL: cfg.AttendeeTokenTTL,
	}, nil
}

func (m *Manager) NewAttendeeToken(registrationID, eventID uuid.UUID, email string) (string, time.Duration, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, attendeeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.attendeeTokenTTL)),
			Subject:   registrationID.String(),
		},
		EventID: eventID.String(),
		Email:   email,
	})

	signed, err := token.SignedString([]byte(m.signingKey))
	if err != nil {
		return "", 0, errors.New("sign jwt failed")
	}

	return signed, m.attendeeTokenTTL, nil
}

func (m *Manager) ParseAttendeeToken(token string) (*AttendeeClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &attendeeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(m.signingKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*attendeeClaims)
	if !ok {
		return nil, errors.New("error get attendee claims from token")
	}

	registrationID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("registration id parse: %w", err)
	}

	eventID, err := uuid.Parse(claims.EventID)
	if err != nil {
		return nil, fmt.Errorf("event id parse: %w", err)
	}

	return &AttendeeClaims{
		RegistrationID: registrationID,
		EventID:        eventID,
		Email:          claims.Email,
	}, nil
}
