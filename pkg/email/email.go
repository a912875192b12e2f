// Package email defines the outbound email capability used for billing
// receipts, backed by Postmark in production and a logging sender elsewhere.
package email

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
)

var (
	ErrInvalidConfig = errors.New("invalid email configuration")
	ErrInvalidParams = errors.New("invalid email parameters")
	ErrSendFailed    = errors.New("failed to send email")
)

// Good enough to catch swapped or empty fields; real validation is the
// provider's job.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"billing@substrate.local"`
}

// Sender delivers a single transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string
	Subject  string
	BodyHTML string
	Tag      string
}

func (m Message) validate() error {
	if !emailRegex.MatchString(m.To) {
		return errors.Join(ErrInvalidParams, errors.New("invalid recipient address"))
	}
	if m.Subject == "" {
		return errors.Join(ErrInvalidParams, errors.New("subject is required"))
	}
	if m.BodyHTML == "" {
		return errors.Join(ErrInvalidParams, errors.New("body is required"))
	}
	return nil
}

// LogSender writes emails to the log instead of delivering them. Used in
// development and tests where no Postmark credentials exist.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email suppressed (log sender)",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag,
	)
	return nil
}
