package worker

import (
	"context"

	"github.com/eventpass/backend/internal/config"
	emailProvider "github.com/eventpass/backend/pkg/email"
)

type Workers struct {
	EmailSender EmailSender
}

type Deps struct {
	EmailProvider emailProvider.Sender
	Config        *config.Config
}

type EmailSender interface {
	SendVerificationCodeEmail(ctx context.Context, email string, eventName string, verificationCode string) error
}

func NewWorkers(deps Deps) *Workers {
	return &Workers{
		EmailSender: newEmailSender(deps.EmailProvider, deps.Config.Email),
	}
}
