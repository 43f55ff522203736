package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventpass/backend/internal/domain"
	"github.com/eventpass/backend/internal/repository"
	"github.com/eventpass/backend/internal/session"
	"github.com/eventpass/backend/pkg/auth"
	emailPkg "github.com/eventpass/backend/pkg/email"
	"github.com/eventpass/backend/pkg/regflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type registrationService struct {
	logger           *zap.SugaredLogger
	eventRepo        repository.Events
	qualifierRepo    repository.Qualifiers
	registrationRepo repository.Registrations
	sessions         *session.Store
	tokenManager     auth.TokenManager
}

func newRegistrationService(logger *zap.SugaredLogger,
	eventRepo repository.Events,
	qualifierRepo repository.Qualifiers,
	registrationRepo repository.Registrations,
	sessions *session.Store,
	tokenManager auth.TokenManager,
) *registrationService {
	return &registrationService{
		logger:           logger,
		eventRepo:        eventRepo,
		qualifierRepo:    qualifierRepo,
		registrationRepo: registrationRepo,
		sessions:         sessions,
		tokenManager:     tokenManager,
	}
}

type AttendeeInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type SubmitInput struct {
	EventID       uuid.UUID
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	DistributorID string
	FormData      map[string]string
	TicketCount   int
	Attendees     []AttendeeInput
}

type UpdateInput struct {
	Claims         *auth.AttendeeClaims
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	FirstName      string
	LastName       string
	Phone          string
	FormData       map[string]string
	TicketCount    int
	Attendees      []AttendeeInput
}

type SubmitResult struct {
	Registration  *domain.Registration
	AttendeeToken string
}

// Submit принимает первичную заявку. Создание идемпотентно: уникальный ключ
// (event_id, email) превращает повтор в обновление той же записи, поэтому
// ретрай отправки не плодит дубликатов.
func (s *registrationService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	email := regflow.NormalizeEmail(input.Email)
	if !emailPkg.IsEmailValid(email) {
		return nil, ErrInvalidEmail
	}

	event, err := s.getEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	res := regflow.ResolveMode(event.Config(), regflow.LinkParams{})
	schema := regflow.NewSchema(event.FieldTemplates)

	if err := validateFields(schema, input.FirstName, input.LastName, input.FormData, input.Attendees); err != nil {
		return nil, err
	}

	count, extras, err := ticketRules(res, event, input.TicketCount, input.Attendees)
	if err != nil {
		return nil, err
	}

	var profile *domain.VerifiedProfile
	if res.RequiresVerification {
		profile, err = s.verificationEvidence(ctx, event, email, input.DistributorID)
		if err != nil {
			return nil, err
		}
	}

	var qualifier *domain.Qualifier
	if res.RequiresQualification {
		qualifier, err = s.qualifierRepo.GetByEventAndEmail(ctx, event.ID, email)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrQualificationDenied
		}
		if err != nil {
			return nil, fmt.Errorf("get qualifier failed: %w", err)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate registration id failed: %w", err)
	}

	registration := &domain.Registration{
		ID:                 id,
		EventID:            event.ID,
		Email:              email,
		FirstName:          strings.TrimSpace(input.FirstName),
		LastName:           strings.TrimSpace(input.LastName),
		Phone:              strings.TrimSpace(input.Phone),
		DistributorID:      distributorID(input.DistributorID, qualifier, profile),
		VerifiedByRegistry: profile != nil && profile.VerifiedByExternalRegistry,
		FormData:           schema.Prune(input.FormData),
		AttendeeCount:      count,
	}

	saved, err := s.registrationRepo.Upsert(ctx, registration)
	if err != nil {
		return nil, fmt.Errorf("upsert registration failed: %w", err)
	}

	if err := s.replaceAttendees(ctx, saved.ID, extras); err != nil {
		return nil, err
	}

	token, _, err := s.tokenManager.NewAttendeeToken(saved.ID, event.ID, email)
	if err != nil {
		return nil, fmt.Errorf("issue attendee token failed: %w", err)
	}

	return &SubmitResult{Registration: saved, AttendeeToken: token}, nil
}

// Update перезаписывает существующую заявку по attendee-токену. Email
// неизменяем: личность зафиксирована токеном, присланное значение игнорируется.
func (s *registrationService) Update(ctx context.Context, input UpdateInput) (*SubmitResult, error) {
	registration, err := s.registrationRepo.GetOneByID(ctx, input.RegistrationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration failed: %w", err)
	}

	// Токен должен указывать именно на эту запись.
	if input.Claims == nil ||
		input.Claims.RegistrationID != registration.ID ||
		input.Claims.EventID != registration.EventID ||
		regflow.NormalizeEmail(input.Claims.Email) != registration.Email {
		return nil, ErrTokenInvalid
	}
	if input.EventID != registration.EventID {
		return nil, ErrTokenInvalid
	}

	event, err := s.getEvent(ctx, registration.EventID)
	if err != nil {
		return nil, err
	}
	res := regflow.ResolveMode(event.Config(), regflow.LinkParams{})
	schema := regflow.NewSchema(event.FieldTemplates)

	if err := validateFields(schema, input.FirstName, input.LastName, input.FormData, input.Attendees); err != nil {
		return nil, err
	}

	count, extras, err := ticketRules(res, event, input.TicketCount, input.Attendees)
	if err != nil {
		return nil, err
	}

	registration.FirstName = strings.TrimSpace(input.FirstName)
	registration.LastName = strings.TrimSpace(input.LastName)
	registration.Phone = strings.TrimSpace(input.Phone)
	registration.FormData = schema.Prune(input.FormData)
	registration.AttendeeCount = count

	if err := s.registrationRepo.UpdateByID(ctx, registration); err != nil {
		if errors.Is(err, domain.ErrNoRowsAffected) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("update registration failed: %w", err)
	}

	if err := s.replaceAttendees(ctx, registration.ID, extras); err != nil {
		return nil, err
	}

	token, _, err := s.tokenManager.NewAttendeeToken(registration.ID, registration.EventID, registration.Email)
	if err != nil {
		return nil, fmt.Errorf("issue attendee token failed: %w", err)
	}

	return &SubmitResult{Registration: registration, AttendeeToken: token}, nil
}

// GetExistingBySession loads the prior submission for an OTP-verified
// identity. Callers without a live verified marker get ErrSessionExpired.
func (s *registrationService) GetExistingBySession(ctx context.Context, eventID uuid.UUID, email string) (*domain.Registration, []domain.Attendee, error) {
	email = regflow.NormalizeEmail(email)

	_, ok, err := s.sessions.Verified(ctx, eventID.String(), email)
	if err != nil {
		return nil, nil, fmt.Errorf("get verified marker failed: %w", err)
	}
	if !ok {
		return nil, nil, ErrSessionExpired
	}

	registration, err := s.registrationRepo.GetByEventAndEmail(ctx, eventID, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get registration failed: %w", err)
	}

	attendees, err := s.registrationRepo.GetAttendees(ctx, registration.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get attendees failed: %w", err)
	}

	return registration, attendees, nil
}

// GetForAttendee loads the submission named by a long-lived attendee token.
func (s *registrationService) GetForAttendee(ctx context.Context, claims *auth.AttendeeClaims) (*domain.Registration, []domain.Attendee, error) {
	registration, err := s.registrationRepo.GetOneByID(ctx, claims.RegistrationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get registration failed: %w", err)
	}

	if registration.EventID != claims.EventID ||
		registration.Email != regflow.NormalizeEmail(claims.Email) {
		return nil, nil, ErrTokenInvalid
	}

	attendees, err := s.registrationRepo.GetAttendees(ctx, registration.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get attendees failed: %w", err)
	}

	return registration, attendees, nil
}

// verificationEvidence проверяет право подать заявку без кода в текущем
// запросе: либо есть живой маркер верификации, либо пара (distributorId,
// email) из пригласительной ссылки подтверждается строкой списка события.
func (s *registrationService) verificationEvidence(ctx context.Context, event *domain.Event, email, distributorID string) (*domain.VerifiedProfile, error) {
	profile, ok, err := s.sessions.Verified(ctx, event.ID.String(), email)
	if err != nil {
		return nil, fmt.Errorf("get verified marker failed: %w", err)
	}
	if ok {
		return profile, nil
	}

	if distributorID != "" {
		qualifier, err := s.qualifierRepo.GetByEventAndEmail(ctx, event.ID, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get qualifier failed: %w", err)
		}
		if qualifier != nil && qualifier.DistributorID == distributorID {
			s.logger.Infow("invitation link accepted without otp", "event_id", event.ID, "email", email)
			return nil, nil
		}
	}

	return nil, ErrVerificationRequired
}

func (s *registrationService) replaceAttendees(ctx context.Context, registrationID uuid.UUID, attendees []domain.Attendee) error {
	for i := range attendees {
		attendees[i].RegistrationID = registrationID
	}
	// Always runs, so dropping the ticket count also drops the extra rows.
	if err := s.registrationRepo.ReplaceAttendees(ctx, registrationID, attendees); err != nil {
		return fmt.Errorf("replace attendees failed: %w", err)
	}
	return nil
}

func (s *registrationService) getEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	event, err := s.eventRepo.GetOneByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event failed: %w", err)
	}

	return event, nil
}

// validateFields повторяет клиентскую валидацию на сервере: обязательные
// стандартные поля, затем шаблон события, затем минимальная личность каждого
// дополнительного участника. Ошибки собираются списком, а не первой попавшейся.
func validateFields(schema *regflow.Schema, firstName, lastName string, formData map[string]string, attendees []AttendeeInput) error {
	var missing []string

	if strings.TrimSpace(firstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(lastName) == "" {
		missing = append(missing, "lastName")
	}

	missing = append(missing, schema.Missing(formData)...)

	for i, attendee := range attendees {
		if strings.TrimSpace(attendee.FirstName) == "" {
			missing = append(missing, fmt.Sprintf("attendees[%d].firstName", i))
		}
		if strings.TrimSpace(attendee.LastName) == "" {
			missing = append(missing, fmt.Sprintf("attendees[%d].lastName", i))
		}
		if !emailPkg.IsEmailValid(regflow.NormalizeEmail(attendee.Email)) {
			missing = append(missing, fmt.Sprintf("attendees[%d].email", i))
		}
	}

	if len(missing) > 0 {
		return &regflow.ValidationError{Missing: missing}
	}

	return nil
}

// ticketRules нормализует количество билетов. Больше одного билета бывает
// только в анонимном режиме; там список дополнительных участников обязан
// совпадать с количеством минус основной.
func ticketRules(res regflow.Resolution, event *domain.Event, count int, attendees []AttendeeInput) (int, []domain.Attendee, error) {
	if res.Mode != regflow.ModeOpenAnonymous {
		return 1, nil, nil
	}

	if count == 0 {
		count = 1
	}
	maxTickets := event.MaxTickets
	if maxTickets < 1 {
		maxTickets = 1
	}
	if count < 1 || count > maxTickets {
		return 0, nil, ErrTicketCount
	}
	if len(attendees) != count-1 {
		return 0, nil, ErrTicketCount
	}

	extras := make([]domain.Attendee, 0, len(attendees))
	for _, attendee := range attendees {
		id, err := uuid.NewV7()
		if err != nil {
			return 0, nil, fmt.Errorf("generate attendee id failed: %w", err)
		}
		extras = append(extras, domain.Attendee{
			ID:        id,
			FirstName: strings.TrimSpace(attendee.FirstName),
			LastName:  strings.TrimSpace(attendee.LastName),
			Email:     regflow.NormalizeEmail(attendee.Email),
			Phone:     strings.TrimSpace(attendee.Phone),
		})
	}

	return count, extras, nil
}

// distributorID: строка списка авторитетна, затем профиль из реестра, и только
// потом значение из ссылки.
func distributorID(fromLink string, qualifier *domain.Qualifier, profile *domain.VerifiedProfile) string {
	if qualifier != nil {
		return qualifier.DistributorID
	}
	if profile != nil && profile.UnicityID != "" {
		return profile.UnicityID
	}
	return fromLink
}
