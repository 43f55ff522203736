package regflow

import (
	"errors"
	"strings"
)

// Error taxonomy of the registration flow. Identity and session errors reset
// the flow to the earliest safe state; validation errors never leave the form;
// submission errors never discard entered data.
var (
	// ErrRateLimited: too many code requests for this identity; retry later.
	ErrRateLimited = errors.New("verification code requests rate limited")
	// ErrInvalidEmail: the address is syntactically unusable.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidCode: wrong one-time code; the session and its expiry stand.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrSessionExpired: the code or verified session lapsed; recoverable by
	// resend or re-entry.
	ErrSessionExpired = errors.New("verification session expired")
	// ErrQualificationDenied: terminal for this identity; only a different
	// email recovers.
	ErrQualificationDenied = errors.New("not qualified for this event")
	// ErrTokenInvalid: the long-lived attendee token was rejected; fall back
	// to email verification.
	ErrTokenInvalid = errors.New("attendee token invalid")
	// ErrVerificationRequired: the server found no live verified session for
	// the submission; the payload is held and resent after the code step.
	ErrVerificationRequired = errors.New("verification required")
	// ErrTicketCount: the requested ticket count is outside 1..max or the
	// attendee list does not match it.
	ErrTicketCount = errors.New("invalid ticket count")
	// ErrNetwork: generic transport or server failure; input is preserved and
	// retry is a manual resubmission.
	ErrNetwork = errors.New("network failure")
)

// ValidationError names every missing required field, collected in template
// order rather than failing on the first.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing: " + strings.Join(e.Missing, ", ")
}
