// Package mailer delivers transactional email through SendGrid, or to the log
// when no API key is configured.
package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/pkg/config"
)

// Message is a single outgoing email.
type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks SendGrid when an API key is present and the log mailer otherwise.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SendgridAPIKey == "" {
		return NewLogMailer(logger)
	}
	return NewSendgridMailer(cfg)
}

type sendFunc func(ctx context.Context, m *sgmail.SGMailV3) (status int, body string, err error)

// SendgridMailer posts messages to the SendGrid v3 API.
type SendgridMailer struct {
	from       *sgmail.Email
	subjPrefix string
	send       sendFunc
}

// NewSendgridMailer builds a SendGrid backed mailer.
func NewSendgridMailer(cfg config.MailConfig) *SendgridMailer {
	client := sendgrid.NewSendClient(cfg.SendgridAPIKey)
	return &SendgridMailer{
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: "[" + cfg.FromName + "] ",
		send: func(ctx context.Context, m *sgmail.SGMailV3) (int, string, error) {
			res, err := client.SendWithContext(ctx, m)
			if err != nil {
				return 0, "", err
			}
			return res.StatusCode, res.Body, nil
		},
	}
}

// Send delivers msg. A 4xx/5xx reply from SendGrid is an error so the caller
// may retry.
func (s *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if msg.To.Address == "" {
		return fmt.Errorf("mailer: recipient required")
	}
	status, body, err := s.send(ctx, s.prepare(msg))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", status, body)
	}
	return nil
}

func (s *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// LogMailer writes messages to the logger instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer for local development.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg.
func (l *LogMailer) Send(_ context.Context, msg Message) error {
	l.logger.Info("email",
		zap.String("to", msg.To.String()),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
