package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Morphiu/Squad-Yangu/internal/infra/config"
	gomail "github.com/wneessen/go-mail"
)

var ErrNotConfigured = errors.New("smtp host is not configured")

type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

type SMTPSender struct {
	from   string
	client deliverer
}

func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	if cfg.SMTPHost == "" {
		return nil, ErrNotConfigured
	}

	timeout := cfg.EmailSendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	if cfg.SMTPPort == 465 {
		opts = append(opts, gomail.WithSSL())
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{from: cfg.SMTPFrom, client: client}, nil
}

// Send delivers one HTML message. The context bounds dialing and the
// whole SMTP exchange.
func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	return s.send(ctx, to, subject, gomail.TypeTextHTML, html)
}

func (s *SMTPSender) SendText(ctx context.Context, to, subject, text string) error {
	return s.send(ctx, to, subject, gomail.TypeTextPlain, text)
}

func (s *SMTPSender) send(ctx context.Context, to, subject string, ct gomail.ContentType, body string) error {
	msg, err := s.message(to, subject, ct, body)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) message(to, subject string, ct gomail.ContentType, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(ct, body)
	return msg, nil
}

// Unconfigured fails every send. It stands in when no SMTP host is set so
// reset requests are rolled back instead of silently dropped.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, string, string, string) error {
	return ErrNotConfigured
}
