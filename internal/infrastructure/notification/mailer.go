// Package notification renders and delivers customer emails.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Message is a rendered email ready to send
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig holds SMTP delivery settings
type SMTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	FromAddress    string
	FromName       string
	TimeoutSeconds int
}

const (
	smtpsPort             = 465
	defaultSMTPPort       = 587
	defaultTimeoutSeconds = 10
)

// Errors for mail configuration and delivery
var (
	ErrConfigMissingHost = errors.New("notification: smtp host is required")
	ErrConfigMissingFrom = errors.New("notification: from address is required")
	ErrMissingRecipient  = errors.New("notification: recipient is required")
	ErrDeliveryFailed    = errors.New("notification: delivery failed")
)

// Validate checks required fields and fills defaults
func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return ErrConfigMissingHost
	}
	if c.FromAddress == "" {
		return ErrConfigMissingFrom
	}
	if c.Port <= 0 {
		c.Port = defaultSMTPPort
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	return nil
}

// ImplicitTLS reports whether the connection uses SSL from the first byte (port 465).
// Every other port requires STARTTLS.
func (c *SMTPConfig) ImplicitTLS() bool {
	return c.Port == smtpsPort
}

// SMTPMailer sends messages over SMTP
type SMTPMailer struct {
	config *SMTPConfig
	logger *zap.Logger
}

// NewSMTPMailer creates an SMTP mailer
func NewSMTPMailer(config *SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{config: config, logger: logger.Named("smtp")}, nil
}

// clientOptions builds the go-mail options for the configured port
func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTimeout(time.Duration(m.config.TimeoutSeconds) * time.Second),
	}
	if m.config.ImplicitTLS() {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}
	return opts
}

// buildMessage converts a Message into a go-mail message
func (m *SMTPMailer) buildMessage(msg *Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.FromFormat(m.config.FromName, m.config.FromAddress); err != nil {
		return nil, fmt.Errorf("notification: invalid from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("notification: invalid recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return out, nil
}

// Send delivers one message. Nothing is retried.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if msg == nil || msg.To == "" {
		return ErrMissingRecipient
	}
	out, err := m.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.config.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		m.logger.Warn("Email delivery failed",
			zap.String("host", m.config.Host),
			zap.Int("port", m.config.Port),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	m.logger.Info("Email sent", zap.String("subject", msg.Subject))
	return nil
}

// LogMailer logs messages instead of sending them. Used when SMTP is disabled.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail")}
}

// Send logs the message and returns nil
func (m *LogMailer) Send(_ context.Context, msg *Message) error {
	if msg == nil || msg.To == "" {
		return ErrMissingRecipient
	}
	m.logger.Info("Email delivery disabled, message dropped",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Ensure the mailers implement Mailer
var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
