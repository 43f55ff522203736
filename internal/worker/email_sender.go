package worker

import (
	"context"
	"fmt"

	"github.com/eventpass/backend/internal/config"
	emailProvider "github.com/eventpass/backend/pkg/email"
)

type emailSender struct {
	sender emailProvider.Sender
	config config.EmailConfig
}

func newEmailSender(
	sender emailProvider.Sender,
	config config.EmailConfig,
) *emailSender {
	return &emailSender{
		sender: sender,
		config: config,
	}
}

type verificationEmailInput struct {
	EventName        string
	VerificationCode string
}

func (s *emailSender) SendVerificationCodeEmail(ctx context.Context, email string, eventName string, verificationCode string) error {
	subject := fmt.Sprintf("Your verification code for %s", eventName)

	templateInput := verificationEmailInput{EventName: eventName, VerificationCode: verificationCode}
	sendInput := emailProvider.SendEmailInput{
		Subject:  subject,
		To:       email,
		TextBody: fmt.Sprintf("Your verification code for %s: %s", eventName, verificationCode),
	}

	if err := sendInput.GenerateBodyFromHTML(s.config.Templates.VerificationCode, templateInput); err != nil {
		return fmt.Errorf("generate email failed: %w", err)
	}

	if err := s.sender.Send(sendInput); err != nil {
		return fmt.Errorf("send email failed: %w", err)
	}

	return nil
}
