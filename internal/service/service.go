package service

import (
	"context"

	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/domain"
	"github.com/eventpass/backend/internal/repository"
	"github.com/eventpass/backend/internal/session"
	"github.com/eventpass/backend/pkg/auth"
	"github.com/eventpass/backend/pkg/hash"
	"github.com/eventpass/backend/pkg/otp"
	"github.com/eventpass/backend/pkg/regflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Services struct {
	Events        Events
	Verification  Verification
	Registrations Registrations
}

type Deps struct {
	Logger       *zap.SugaredLogger
	Config       *config.Config
	Repos        *repository.Repositories
	Sessions     *session.Store
	Registry     Registry
	TokenManager auth.TokenManager
	OtpGenerator otp.Generator
	CodeHasher   hash.CodeHasher
}

func NewServices(deps Deps) *Services {
	return &Services{
		Events: newEventService(deps.Repos.Events),
		Verification: newVerificationService(
			deps.Logger,
			deps.Config,
			deps.Repos.Events,
			deps.Repos.Qualifiers,
			deps.Repos.VerificationLog,
			deps.Sessions,
			deps.Registry,
			deps.OtpGenerator,
			deps.CodeHasher,
		),
		Registrations: newRegistrationService(
			deps.Logger,
			deps.Repos.Events,
			deps.Repos.Qualifiers,
			deps.Repos.Registrations,
			deps.Sessions,
			deps.TokenManager,
		),
	}
}

// Registry is the slice of the external distributor registry the
// verification flow needs.
type Registry interface {
	LookupByEmail(ctx context.Context, email string) (*domain.VerifiedProfile, error)
}

type Events interface {
	GetConfig(ctx context.Context, idOrSlug string) (*regflow.EventConfig, error)
}

type Verification interface {
	GenerateCode(ctx context.Context, input GenerateCodeInput) (*GenerateCodeResult, error)
	ValidateCode(ctx context.Context, input ValidateCodeInput) (*ValidateCodeResult, error)
	SessionStatus(ctx context.Context, eventID uuid.UUID, email string) (bool, error)
	IssueRedirectToken(ctx context.Context, eventID uuid.UUID, email string) (string, error)
	ConsumeRedirectToken(ctx context.Context, token string, eventID uuid.UUID) (*ConsumeResult, error)
}

type Registrations interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	Update(ctx context.Context, input UpdateInput) (*SubmitResult, error)
	GetExistingBySession(ctx context.Context, eventID uuid.UUID, email string) (*domain.Registration, []domain.Attendee, error)
	GetForAttendee(ctx context.Context, claims *auth.AttendeeClaims) (*domain.Registration, []domain.Attendee, error)
}
