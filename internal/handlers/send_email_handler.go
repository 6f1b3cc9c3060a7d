package handlers

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/illegalcall/palmistry/internal/config"
	"github.com/illegalcall/palmistry/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrEmailNotConfigured = errors.New("email configuration not complete")

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, payload models.SendEmailPayload) error
}

type EmailSender struct {
	from   string
	dialer *gomail.Dialer
}

func NewEmailSender(cfg config.EmailConfig) (*EmailSender, error) {
	if cfg.From == "" || cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrEmailNotConfigured
	}
	return &EmailSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password),
	}, nil
}

// Render returns the HTML body for a payload: the named template filled with
// Data, or Body when no template is named.
func Render(payload models.SendEmailPayload) (string, error) {
	if payload.TemplateName == "" {
		return payload.Body, nil
	}
	tmpl := templates.Lookup(payload.TemplateName + ".html")
	if tmpl == nil {
		return "", fmt.Errorf("unknown email template %q", payload.TemplateName)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload.Data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func (e *EmailSender) Send(ctx context.Context, payload models.SendEmailPayload) error {
	if payload.Recipient == "" || payload.Subject == "" {
		return fmt.Errorf("recipient and subject are required")
	}
	body, err := Render(payload)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", payload.Recipient)
	m.SetHeader("Subject", payload.Subject)
	m.SetBody("text/html", body)

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Email sent successfully", "recipient", payload.Recipient, "subject", payload.Subject)
	return nil
}
