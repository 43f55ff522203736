package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/eventpass/backend/internal/domain"
)

type eventsRepoMock struct {
	mock.Mock
}

func (m *eventsRepoMock) GetOneByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*domain.Event)

	return event, args.Error(1)
}

func (m *eventsRepoMock) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	args := m.Called(ctx, slug)
	event, _ := args.Get(0).(*domain.Event)

	return event, args.Error(1)
}

type qualifiersRepoMock struct {
	mock.Mock
}

func (m *qualifiersRepoMock) GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*domain.Qualifier, error) {
	args := m.Called(ctx, eventID, email)
	qualifier, _ := args.Get(0).(*domain.Qualifier)

	return qualifier, args.Error(1)
}

type registrationsRepoMock struct {
	mock.Mock
}

func (m *registrationsRepoMock) GetOneByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	args := m.Called(ctx, id)
	registration, _ := args.Get(0).(*domain.Registration)

	return registration, args.Error(1)
}

func (m *registrationsRepoMock) GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*domain.Registration, error) {
	args := m.Called(ctx, eventID, email)
	registration, _ := args.Get(0).(*domain.Registration)

	return registration, args.Error(1)
}

func (m *registrationsRepoMock) Upsert(ctx context.Context, registration *domain.Registration) (*domain.Registration, error) {
	args := m.Called(ctx, registration)
	saved, _ := args.Get(0).(*domain.Registration)

	return saved, args.Error(1)
}

func (m *registrationsRepoMock) UpdateByID(ctx context.Context, registration *domain.Registration) error {
	args := m.Called(ctx, registration)

	return args.Error(0)
}

func (m *registrationsRepoMock) ReplaceAttendees(ctx context.Context, registrationID uuid.UUID, attendees []domain.Attendee) error {
	args := m.Called(ctx, registrationID, attendees)

	return args.Error(0)
}

func (m *registrationsRepoMock) GetAttendees(ctx context.Context, registrationID uuid.UUID) ([]domain.Attendee, error) {
	args := m.Called(ctx, registrationID)
	attendees, _ := args.Get(0).([]domain.Attendee)

	return attendees, args.Error(1)
}

type verificationLogRepoMock struct {
	mock.Mock
}

func (m *verificationLogRepoMock) Insert(ctx context.Context, entry *domain.VerificationLogEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *verificationLogRepoMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)

	return args.Get(0).(int64), args.Error(1)
}

type registryMock struct {
	mock.Mock
}

func (m *registryMock) LookupByEmail(ctx context.Context, email string) (*domain.VerifiedProfile, error) {
	args := m.Called(ctx, email)
	profile, _ := args.Get(0).(*domain.VerifiedProfile)

	return profile, args.Error(1)
}
