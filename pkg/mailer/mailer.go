// Package mailer delivers faculty notification emails over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/pkg/config"
)

// Message is one outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through an SMTP relay with go-mail.
type SMTPSender struct {
	client   *mail.Client
	from     string
	fromName string
}

// NewSMTPSender configures the SMTP client. It does not dial.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP_HOST is required")
	}
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, fromName: cfg.FromName}, nil
}

// Send builds the MIME message and delivers it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := Build(s.from, s.fromName, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Build assembles a go-mail message with a plain text body and an optional
// HTML alternative.
func Build(from, fromName string, msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, errors.New("recipient is required")
	}
	m := mail.NewMsg()
	if err := m.FromFormat(fromName, from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// LogSender only logs messages. It stands in for SMTP when mail is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the recipient and subject.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient is required")
	}
	s.logger.Info("mail delivery disabled, message logged", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// New returns an SMTP sender when mail is enabled and a LogSender otherwise.
func New(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	if !cfg.Enabled {
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg)
}
