package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationSession is the server-held one-time-code state for an
// (event, email) pair. It lives in redis for the code TTL, is overwritten by
// every new code request (last-write-wins) and deleted on successful
// validation (single-use).
type VerificationSession struct {
	EventID         string    `json:"event_id"`
	Email           string    `json:"email"`
	CodeHash        string    `json:"code_hash"`
	DistributorHint string    `json:"distributor_hint,omitempty"`
	Attempts        int       `json:"attempts"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func (s *VerificationSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// VerifiedProfile is the identity established by a successful code validation
// or a consumed redirect token. Fields it supplies are locked in the form.
type VerifiedProfile struct {
	UnicityID                  string `json:"unicityId"`
	Email                      string `json:"email"`
	FirstName                  string `json:"firstName"`
	LastName                   string `json:"lastName"`
	Phone                      string `json:"phone,omitempty"`
	VerifiedByExternalRegistry bool   `json:"verifiedByExternalRegistry"`
}

type QualificationResult struct {
	IsQualified bool   `json:"isQualified"`
	Message     string `json:"message"`
}

// RedirectGrant is the payload behind a one-time redirect token minted by the
// external "my events" login flow. Consumed atomically, never reusable.
type RedirectGrant struct {
	EventID string          `json:"event_id"`
	Email   string          `json:"email"`
	Profile VerifiedProfile `json:"profile"`
}

type VerificationAction string

const (
	VerificationRequested VerificationAction = "requested"
	VerificationValidated VerificationAction = "validated"
	VerificationFailed    VerificationAction = "failed"
	VerificationExpired   VerificationAction = "expired"
	VerificationDenied    VerificationAction = "denied"
)

// VerificationLogEntry is the abuse-monitoring audit row, purged by the janitor.
type VerificationLogEntry struct {
	ID        uuid.UUID          `db:"id"`
	EventID   uuid.UUID          `db:"event_id"`
	Email     string             `db:"email"`
	Action    VerificationAction `db:"action"`
	CreatedAt time.Time          `db:"created_at"`
}
