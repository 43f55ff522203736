package regflow

import "sync"

// SessionStore is the durable client-side session state, modeled explicitly
// and injected rather than accessed ambiently. The verified email is
// session-scoped; the attendee credentials pair a long-lived token with the
// email it was minted for. Every restored value is revalidated against the
// server before it is trusted.
type SessionStore interface {
	VerifiedEmail(eventID string) string
	SetVerifiedEmail(eventID, email string)
	ClearVerifiedEmail(eventID string)

	Attendee(eventID string) (token, email string)
	SetAttendee(eventID, token, email string)
	ClearAttendee(eventID string)
}

type attendeeCreds struct {
	token string
	email string
}

// MemorySessionStore keeps session state in process memory. Embedders backed
// by real browser storage supply their own SessionStore.
type MemorySessionStore struct {
	mu        sync.Mutex
	verified  map[string]string
	attendees map[string]attendeeCreds
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		verified:  make(map[string]string),
		attendees: make(map[string]attendeeCreds),
	}
}

func (s *MemorySessionStore) VerifiedEmail(eventID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified[eventID]
}

func (s *MemorySessionStore) SetVerifiedEmail(eventID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[eventID] = NormalizeEmail(email)
}

func (s *MemorySessionStore) ClearVerifiedEmail(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verified, eventID)
}

func (s *MemorySessionStore) Attendee(eventID string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds := s.attendees[eventID]
	return creds.token, creds.email
}

func (s *MemorySessionStore) SetAttendee(eventID, token, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendees[eventID] = attendeeCreds{token: token, email: NormalizeEmail(email)}
}

func (s *MemorySessionStore) ClearAttendee(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attendees, eventID)
}
