package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
)

// SendEmailInput carries one outgoing message. TextBody is the plain-text
// alternative; senders that support multipart deliver both.
type SendEmailInput struct {
	To       string
	Subject  string
	Body     string
	TextBody string
}

type Sender interface {
	Send(input SendEmailInput) error
}

func (e *SendEmailInput) GenerateBodyFromHTML(templateFileName string, data interface{}) error {
	t, err := template.ParseFiles("./templates/" + templateFileName)
	if err != nil {
		return fmt.Errorf("parse file failed: %w", err)
	}

	buf := new(bytes.Buffer)
	if err = t.Execute(buf, data); err != nil {
		return fmt.Errorf("email data injection failed: %w", err)
	}

	e.Body = buf.String()

	return nil
}

func (e *SendEmailInput) Validate() error {
	if e.To == "" {
		return errors.New("empty to")
	}

	if e.Subject == "" {
		return errors.New("empty subject")
	}

	if e.Body == "" && e.TextBody == "" {
		return errors.New("empty body")
	}

	if !IsEmailValid(e.To) {
		return errors.New("invalid to email")
	}

	return nil
}
