package service

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	ErrInvalidEmail         = errors.New("invalid email")
	ErrRateLimited          = errors.New("code requests rate limited")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrSessionExpired       = errors.New("verification session expired")
	ErrVerificationRequired = errors.New("verification required")
	ErrQualificationDenied  = errors.New("not qualified for this event")
	ErrTicketCount          = errors.New("invalid ticket count")
	ErrTokenInvalid         = errors.New("attendee token does not match the registration")
)
