package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/domain"
	queueclient "github.com/eventpass/backend/internal/queue/client"
	"github.com/eventpass/backend/internal/queue/task"
	"github.com/eventpass/backend/internal/repository"
	"github.com/eventpass/backend/internal/session"
	emailPkg "github.com/eventpass/backend/pkg/email"
	"github.com/eventpass/backend/pkg/hash"
	"github.com/eventpass/backend/pkg/otp"
	"github.com/eventpass/backend/pkg/regflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const qualificationDeniedMessage = "This email is not on the list of qualified attendees for this event."

type verificationService struct {
	logger        *zap.SugaredLogger
	config        *config.Config
	eventRepo     repository.Events
	qualifierRepo repository.Qualifiers
	logRepo       repository.VerificationLog
	sessions      *session.Store
	registry      Registry
	otpGenerator  otp.Generator
	codeHasher    hash.CodeHasher
}

func newVerificationService(logger *zap.SugaredLogger,
	config *config.Config,
	eventRepo repository.Events,
	qualifierRepo repository.Qualifiers,
	logRepo repository.VerificationLog,
	sessions *session.Store,
	registry Registry,
	otpGenerator otp.Generator,
	codeHasher hash.CodeHasher,
) *verificationService {
	return &verificationService{
		logger:        logger,
		config:        config,
		eventRepo:     eventRepo,
		qualifierRepo: qualifierRepo,
		logRepo:       logRepo,
		sessions:      sessions,
		registry:      registry,
		otpGenerator:  otpGenerator,
		codeHasher:    codeHasher,
	}
}

type GenerateCodeInput struct {
	EventID       uuid.UUID
	Email         string
	DistributorID string
}

type GenerateCodeResult struct {
	// DevCode carries the generated code in non-production environments so
	// flows can be exercised without a mailbox. Empty in prod.
	DevCode string
}

type ValidateCodeInput struct {
	EventID uuid.UUID
	Email   string
	Code    string
}

type ValidateCodeResult struct {
	Profile              *domain.VerifiedProfile
	VerifiedByRegistry   bool
	QualificationChecked bool
	IsQualified          bool
	QualificationMessage string
}

type ConsumeResult struct {
	Email   string
	Profile *domain.VerifiedProfile
}

// GenerateCode выдает одноразовый код для (event, email) и ставит письмо в
// очередь. Повторный запрос перезаписывает предыдущую сессию: действителен
// только последний код.
func (s *verificationService) GenerateCode(ctx context.Context, input GenerateCodeInput) (*GenerateCodeResult, error) {
	email := regflow.NormalizeEmail(input.Email)
	if !emailPkg.IsEmailValid(email) {
		return nil, ErrInvalidEmail
	}

	event, err := s.getEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}

	count, err := s.sessions.CountCodeRequest(ctx, event.ID.String(), email)
	if err != nil {
		return nil, fmt.Errorf("count code requests failed: %w", err)
	}
	if count > int64(s.config.Verification.RateMax) {
		return nil, ErrRateLimited
	}

	code := s.otpGenerator.RandomCode(s.config.Auth.VerificationCodeLength)
	codeHash, err := s.codeHasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("hash code failed: %w", err)
	}

	sess := &domain.VerificationSession{
		EventID:         event.ID.String(),
		Email:           email,
		CodeHash:        codeHash,
		DistributorHint: input.DistributorID,
		ExpiresAt:       time.Now().Add(s.config.Verification.CodeTTL),
	}

	if err := s.sessions.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("put verification session failed: %w", err)
	}

	if s.config.Email.Enabled {
		t, err := task.NewSendCodeTask(email, event.Name, code)
		if err != nil {
			return nil, fmt.Errorf("build send code task failed: %w", err)
		}

		client := queueclient.GetClient(ctx)
		if client == nil {
			return nil, errors.New("queue client is not configured")
		}
		if _, err := client.EnqueueContext(ctx, t); err != nil {
			return nil, fmt.Errorf("enqueue send code task failed: %w", err)
		}
	}

	s.audit(ctx, event.ID, email, domain.VerificationRequested)

	result := &GenerateCodeResult{}
	if s.config.DevCodeEnabled() {
		result.DevCode = code
	}

	return result, nil
}

// ValidateCode проверяет введенный код. Успех уничтожает сессию кода
// (одноразовость), подтягивает профиль из реестра и для событий с отбором
// проверяет право на участие. Маркер верификации пишется только когда отбор
// пройден или не требуется.
func (s *verificationService) ValidateCode(ctx context.Context, input ValidateCodeInput) (*ValidateCodeResult, error) {
	email := regflow.NormalizeEmail(input.Email)

	event, err := s.getEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	res := regflow.ResolveMode(event.Config(), regflow.LinkParams{})

	sess, err := s.sessions.GetSession(ctx, event.ID.String(), email)
	if errors.Is(err, session.ErrCacheMiss) {
		s.audit(ctx, event.ID, email, domain.VerificationExpired)
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("get verification session failed: %w", err)
	}

	// Срок в самой сессии дублирует TTL ключа на случай рассинхронизации часов.
	if sess.Expired(time.Now()) {
		s.dropSession(ctx, event.ID, email)
		s.audit(ctx, event.ID, email, domain.VerificationExpired)
		return nil, ErrSessionExpired
	}

	codeHash, err := s.codeHasher.Hash(input.Code)
	if err != nil {
		return nil, fmt.Errorf("hash code failed: %w", err)
	}

	if codeHash != sess.CodeHash {
		sess.Attempts++
		if sess.Attempts >= s.config.Verification.MaxAttempts {
			// Попытки исчерпаны: код отзывается досрочно.
			s.dropSession(ctx, event.ID, email)
			s.audit(ctx, event.ID, email, domain.VerificationFailed)
			return nil, ErrSessionExpired
		}
		// Счетчик попыток не продлевает жизнь кода.
		if err := s.sessions.UpdateSession(ctx, sess); err != nil && !errors.Is(err, session.ErrCacheMiss) {
			return nil, fmt.Errorf("update verification session failed: %w", err)
		}
		s.audit(ctx, event.ID, email, domain.VerificationFailed)
		return nil, ErrInvalidCode
	}

	s.dropSession(ctx, event.ID, email)

	result := &ValidateCodeResult{}

	var profile *domain.VerifiedProfile
	if s.config.Registry.Enabled {
		profile, err = s.registry.LookupByEmail(ctx, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			// Верификация не падает из-за недоступного реестра.
			s.logger.Warnw("registry lookup failed", "email", email, "error", err)
		}
		if profile != nil {
			profile.Email = email
			result.VerifiedByRegistry = profile.VerifiedByExternalRegistry
		}
	}

	if res.RequiresQualification {
		result.QualificationChecked = true

		qualifier, qErr := s.qualifierRepo.GetByEventAndEmail(ctx, event.ID, email)
		if qErr != nil && !errors.Is(qErr, domain.ErrNotFound) {
			return nil, fmt.Errorf("get qualifier failed: %w", qErr)
		}
		if qualifier == nil {
			s.audit(ctx, event.ID, email, domain.VerificationDenied)
			result.QualificationMessage = qualificationDeniedMessage
			return result, nil
		}

		result.IsQualified = true
		if profile == nil {
			profile = &domain.VerifiedProfile{
				UnicityID: qualifier.DistributorID,
				Email:     email,
				FirstName: qualifier.FirstName,
				LastName:  qualifier.LastName,
				Phone:     qualifier.Phone,
			}
		}
	}

	if err := s.sessions.MarkVerified(ctx, event.ID.String(), email, profile); err != nil {
		return nil, fmt.Errorf("mark verified failed: %w", err)
	}

	s.audit(ctx, event.ID, email, domain.VerificationValidated)

	result.Profile = profile
	return result, nil
}

func (s *verificationService) SessionStatus(ctx context.Context, eventID uuid.UUID, email string) (bool, error) {
	email = regflow.NormalizeEmail(email)

	_, ok, err := s.sessions.Verified(ctx, eventID.String(), email)
	if err != nil {
		return false, fmt.Errorf("get verified marker failed: %w", err)
	}

	return ok, nil
}

// IssueRedirectToken mints a one-time cross-device token for an identity
// that currently holds a verified marker. The plaintext token goes into the
// link; only its hash is stored.
func (s *verificationService) IssueRedirectToken(ctx context.Context, eventID uuid.UUID, email string) (string, error) {
	email = regflow.NormalizeEmail(email)

	profile, ok, err := s.sessions.Verified(ctx, eventID.String(), email)
	if err != nil {
		return "", fmt.Errorf("get verified marker failed: %w", err)
	}
	if !ok {
		return "", ErrVerificationRequired
	}

	token := s.otpGenerator.RandomSecret(s.config.Verification.RedirectTokenLen)
	tokenHash, err := s.codeHasher.Hash(token)
	if err != nil {
		return "", fmt.Errorf("hash token failed: %w", err)
	}

	grant := &domain.RedirectGrant{
		EventID: eventID.String(),
		Email:   email,
	}
	if profile != nil {
		grant.Profile = *profile
	}

	if err := s.sessions.PutRedirectGrant(ctx, tokenHash, grant); err != nil {
		return "", fmt.Errorf("put redirect grant failed: %w", err)
	}

	return token, nil
}

// ConsumeRedirectToken redeems a cross-device token and establishes the
// verified session on the consuming device. Single use: the second attempt
// gets ErrSessionExpired.
func (s *verificationService) ConsumeRedirectToken(ctx context.Context, token string, eventID uuid.UUID) (*ConsumeResult, error) {
	tokenHash, err := s.codeHasher.Hash(token)
	if err != nil {
		return nil, fmt.Errorf("hash token failed: %w", err)
	}

	grant, err := s.sessions.ConsumeRedirectGrant(ctx, tokenHash)
	if errors.Is(err, session.ErrCacheMiss) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("consume redirect grant failed: %w", err)
	}

	if grant.EventID != eventID.String() {
		return nil, ErrSessionExpired
	}

	var profile *domain.VerifiedProfile
	if grant.Profile != (domain.VerifiedProfile{}) {
		p := grant.Profile
		profile = &p
	}

	if err := s.sessions.MarkVerified(ctx, grant.EventID, grant.Email, profile); err != nil {
		return nil, fmt.Errorf("mark verified failed: %w", err)
	}

	return &ConsumeResult{Email: grant.Email, Profile: profile}, nil
}

func (s *verificationService) getEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	event, err := s.eventRepo.GetOneByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event failed: %w", err)
	}

	return event, nil
}

func (s *verificationService) dropSession(ctx context.Context, eventID uuid.UUID, email string) {
	if err := s.sessions.DeleteSession(ctx, eventID.String(), email); err != nil {
		s.logger.Warnw("delete verification session failed", "error", err)
	}
}

// audit records an abuse-monitoring row. Best effort: a logging failure
// never blocks the verification flow.
func (s *verificationService) audit(ctx context.Context, eventID uuid.UUID, email string, action domain.VerificationAction) {
	id, err := uuid.NewV7()
	if err != nil {
		s.logger.Warnw("generate log id failed", "error", err)
		return
	}

	entry := &domain.VerificationLogEntry{
		ID:      id,
		EventID: eventID,
		Email:   email,
		Action:  action,
	}
	if err := s.logRepo.Insert(ctx, entry); err != nil {
		s.logger.Warnw("insert verification log failed", "action", string(action), "error", err)
	}
}
