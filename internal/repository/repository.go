package repository

import (
	"context"
	"time"

	"github.com/eventpass/backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	Events          Events
	Qualifiers      Qualifiers
	Registrations   Registrations
	VerificationLog VerificationLog
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Events:          newEventRepository(db),
		Qualifiers:      newQualifierRepository(db),
		Registrations:   newRegistrationRepository(db),
		VerificationLog: newVerificationLogRepository(db),
	}
}

type Events interface {
	GetOneByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Event, error)
}

type Qualifiers interface {
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*domain.Qualifier, error)
}

type Registrations interface {
	GetOneByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error)
	GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*domain.Registration, error)
	// Upsert inserts or, on the (event_id, email) unique key, updates in
	// place. The returned row carries the canonical id either way.
	Upsert(ctx context.Context, registration *domain.Registration) (*domain.Registration, error)
	UpdateByID(ctx context.Context, registration *domain.Registration) error
	ReplaceAttendees(ctx context.Context, registrationID uuid.UUID, attendees []domain.Attendee) error
	GetAttendees(ctx context.Context, registrationID uuid.UUID) ([]domain.Attendee, error)
}

type VerificationLog interface {
	Insert(ctx context.Context, entry *domain.VerificationLogEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
