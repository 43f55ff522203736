package regflow

import "strings"

// IdentityKey scopes all cached per-person state. Data loaded under one key
// must never be rendered under another.
type IdentityKey struct {
	Email   string
	EventID string
}

// NewIdentityKey builds a key with the email normalized, so case or whitespace
// variations of one address share state.
func NewIdentityKey(email, eventID string) IdentityKey {
	return IdentityKey{Email: NormalizeEmail(email), EventID: eventID}
}

func (k IdentityKey) Zero() bool {
	return k.Email == "" && k.EventID == ""
}

// String is the single-flight and cache key form.
func (k IdentityKey) String() string {
	return k.EventID + "|" + k.Email
}

// NormalizeEmail lowercases and trims an address. Every email compared or
// stored anywhere in the flow goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
