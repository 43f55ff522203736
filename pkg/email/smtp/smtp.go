package smtp

import (
	"github.com/eventpass/backend/pkg/email"

	"github.com/go-gomail/gomail"
	"github.com/pkg/errors"
)

type SMTPSender struct {
	from string
	pass string
	host string
	port int
}

func NewSMTPSender(from, pass, host string, port int) (*SMTPSender, error) {
	if !email.IsEmailValid(from) {
		return nil, errors.New("invalid from email")
	}

	return &SMTPSender{from: from, pass: pass, host: host, port: port}, nil
}

func (s *SMTPSender) Send(input email.SendEmailInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", input.To)
	msg.SetHeader("Subject", input.Subject)
	switch {
	case input.Body != "" && input.TextBody != "":
		msg.SetBody("text/plain", input.TextBody)
		msg.AddAlternative("text/html", input.Body)
	case input.Body != "":
		msg.SetBody("text/html", input.Body)
	default:
		msg.SetBody("text/plain", input.TextBody)
	}

	dialer := gomail.NewDialer(s.host, s.port, s.from, s.pass)
	if err := dialer.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "failed to send email via smtp")
	}

	return nil
}
