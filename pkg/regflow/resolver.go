package regflow

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// LookupSource names the credential that produced an existing-registration
// hit.
type LookupSource string

const (
	LookupSourceToken   LookupSource = "token"
	LookupSourceSession LookupSource = "session"
	LookupSourceNone    LookupSource = "none"
)

// LookupResult carries the outcome of an existing-registration probe along
// with the identity it was resolved for, so callers can discard results that
// arrive after the identity changed. TokenRejected reports that the server
// refused the attendee token; the caller must drop the stored token.
type LookupResult struct {
	Key           IdentityKey
	Exists        bool
	Registration  *Registration
	Source        LookupSource
	TokenRejected bool
}

// Resolver deduplicates concurrent existing-registration lookups per
// identity. Two rapid triggers for the same (email, event) share one HTTP
// round trip.
type Resolver struct {
	client *Client
	group  singleflight.Group
}

func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve probes for a prior submission, preferring the long-lived attendee
// token and falling back to the OTP-verified session. A non-nil result can
// accompany an error: the session path may fail with ErrSessionExpired after
// the token path already got rejected, and both outcomes matter.
func (r *Resolver) Resolve(ctx context.Context, key IdentityKey, attendeeToken string) (*LookupResult, error) {
	v, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		return r.lookup(ctx, key, attendeeToken)
	})
	result, _ := v.(*LookupResult)
	return result, err
}

func (r *Resolver) lookup(ctx context.Context, key IdentityKey, attendeeToken string) (*LookupResult, error) {
	out := &LookupResult{Key: key, Source: LookupSourceNone}

	if attendeeToken != "" {
		resp, err := r.client.AttendeeRegistration(ctx, attendeeToken, key.EventID)
		if err == nil && resp.Exists && tokenMatches(key, resp.Registration) {
			out.Exists = true
			out.Registration = resp.Registration
			out.Source = LookupSourceToken
			return out, nil
		}
		if errors.Is(err, ErrTokenInvalid) {
			out.TokenRejected = true
		}
		// A rejected token, or one minted for a different email, is not
		// fatal here: the verified session may still know about a prior
		// submission.
	}

	resp, err := r.client.ExistingRegistration(ctx, key.Email, key.EventID)
	if err != nil {
		return out, err
	}
	if resp.Exists {
		out.Exists = true
		out.Registration = resp.Registration
		out.Source = LookupSourceSession
	}
	return out, nil
}

// tokenMatches rejects a token hit whose registration belongs to another
// email than the identity being resolved.
func tokenMatches(key IdentityKey, reg *Registration) bool {
	if key.Email == "" || reg == nil {
		return true
	}
	return NormalizeEmail(reg.Email) == key.Email
}
