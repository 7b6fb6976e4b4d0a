// Package mail delivers digests over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

const implicitTLSPort = 465

// SMTPConfig describes the relay and the sender account.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends one multipart message per call.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
	send   func(ctx context.Context, msg *gomail.Msg) error
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer returns a mailer authenticating with PLAIN over mandatory TLS.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &SMTPMailer{cfg: cfg, logger: logger}
	m.send = m.dialAndSend
	return m
}

// Send delivers msg to every recipient in one message.
func (m *SMTPMailer) Send(ctx context.Context, msg ports.Message) error {
	out, err := m.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotificationDelivery, err)
	}

	if err := m.send(ctx, out); err != nil {
		return fmt.Errorf("%w: smtp %s:%d: %w", domain.ErrNotificationDelivery, m.cfg.Host, m.cfg.Port, err)
	}

	m.logger.Debug("email sent", "recipients", len(msg.To), "subject", msg.Subject)
	return nil
}

func (m *SMTPMailer) buildMessage(msg ports.Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("no recipients")
	}

	out := gomail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.cfg.From, err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()

	out.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return out, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
	}
	if m.cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
