package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/domain"
)

const (
	sessionKeyPrefix  = "otp:sess:"
	verifiedKeyPrefix = "otp:verified:"
	redirectKeyPrefix = "otp:redirect:"
	rateKeyPrefix     = "otp:rl:"
)

// Store keeps all short-lived verification state in the cache: pending
// one-time codes, verified markers, one-time redirect grants and the
// per-identity code request counters. Everything is keyed by
// (event, normalized email); callers normalize before they get here.
type Store struct {
	kv  KVStore
	cfg config.VerificationConfig
}

func NewStore(kv KVStore, cfg config.VerificationConfig) *Store {
	return &Store{kv: kv, cfg: cfg}
}

func sessionKey(eventID, email string) string {
	return sessionKeyPrefix + eventID + ":" + email
}

func verifiedKey(eventID, email string) string {
	return verifiedKeyPrefix + eventID + ":" + email
}

func redirectKey(tokenHash string) string {
	return redirectKeyPrefix + tokenHash
}

func rateKey(eventID, email string) string {
	return rateKeyPrefix + eventID + ":" + email
}

// PutSession writes a pending code session with the full code TTL. Writing
// over an existing session is the documented last-write-wins: only the
// newest code validates.
func (s *Store) PutSession(ctx context.Context, sess *domain.VerificationSession) error {
	const op = "session.Store.PutSession"

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%s: marshal session failed: %w", op, err)
	}

	if err := s.kv.Set(ctx, sessionKey(sess.EventID, sess.Email), payload, s.cfg.CodeTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) GetSession(ctx context.Context, eventID, email string) (*domain.VerificationSession, error) {
	const op = "session.Store.GetSession"

	payload, err := s.kv.Get(ctx, sessionKey(eventID, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var sess domain.VerificationSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("%s: unmarshal session failed: %w", op, err)
	}

	return &sess, nil
}

// UpdateSession rewrites a session in place, preserving the remaining TTL.
// Used for attempt bumps; a failed attempt must never extend the code's
// life.
func (s *Store) UpdateSession(ctx context.Context, sess *domain.VerificationSession) error {
	const op = "session.Store.UpdateSession"

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%s: marshal session failed: %w", op, err)
	}

	if err := s.kv.Update(ctx, sessionKey(sess.EventID, sess.Email), payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) DeleteSession(ctx context.Context, eventID, email string) error {
	const op = "session.Store.DeleteSession"

	if err := s.kv.Delete(ctx, sessionKey(eventID, email)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type verifiedMarker struct {
	Email      string                  `json:"email"`
	VerifiedAt time.Time               `json:"verified_at"`
	Profile    *domain.VerifiedProfile `json:"profile,omitempty"`
}

// MarkVerified records a successful verification for the marker TTL. The
// profile may be nil when the external registry is disabled or down.
func (s *Store) MarkVerified(ctx context.Context, eventID, email string, profile *domain.VerifiedProfile) error {
	const op = "session.Store.MarkVerified"

	payload, err := json.Marshal(verifiedMarker{
		Email:      email,
		VerifiedAt: time.Now(),
		Profile:    profile,
	})
	if err != nil {
		return fmt.Errorf("%s: marshal marker failed: %w", op, err)
	}

	if err := s.kv.Set(ctx, verifiedKey(eventID, email), payload, s.cfg.MarkerTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Verified reports whether the identity holds a live verified marker, along
// with the profile captured at verification time.
func (s *Store) Verified(ctx context.Context, eventID, email string) (*domain.VerifiedProfile, bool, error) {
	const op = "session.Store.Verified"

	payload, err := s.kv.Get(ctx, verifiedKey(eventID, email))
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	var marker verifiedMarker
	if err := json.Unmarshal(payload, &marker); err != nil {
		return nil, false, fmt.Errorf("%s: unmarshal marker failed: %w", op, err)
	}

	return marker.Profile, true, nil
}

func (s *Store) ClearVerified(ctx context.Context, eventID, email string) error {
	const op = "session.Store.ClearVerified"

	if err := s.kv.Delete(ctx, verifiedKey(eventID, email)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PutRedirectGrant stores a cross-device grant under the token hash. The
// plaintext token travels in the link and is never stored.
func (s *Store) PutRedirectGrant(ctx context.Context, tokenHash string, grant *domain.RedirectGrant) error {
	const op = "session.Store.PutRedirectGrant"

	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("%s: marshal grant failed: %w", op, err)
	}

	if err := s.kv.Set(ctx, redirectKey(tokenHash), payload, s.cfg.RedirectTokenTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumeRedirectGrant redeems a grant atomically. The second caller for
// the same token gets ErrCacheMiss.
func (s *Store) ConsumeRedirectGrant(ctx context.Context, tokenHash string) (*domain.RedirectGrant, error) {
	const op = "session.Store.ConsumeRedirectGrant"

	payload, err := s.kv.GetDel(ctx, redirectKey(tokenHash))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var grant domain.RedirectGrant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return nil, fmt.Errorf("%s: unmarshal grant failed: %w", op, err)
	}

	return &grant, nil
}

// CountCodeRequest bumps the per-identity code request counter and returns
// the new count within the current window.
func (s *Store) CountCodeRequest(ctx context.Context, eventID, email string) (int64, error) {
	const op = "session.Store.CountCodeRequest"

	n, err := s.kv.Incr(ctx, rateKey(eventID, email), s.cfg.RateWindow)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
