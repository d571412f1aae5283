// Package notify delivers screening reports to HR.
package notify

import (
	"context"
	"fmt"
	"strings"

	"callscreen/internal/config"
	"callscreen/internal/errors"

	"github.com/wneessen/go-mail"
)

// Notifier sends a message to the configured recipient.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// New returns an SMTP notifier, or a log-only one when notifications are
// disabled.
func New(cfg config.NotifyConfig, logger *errors.Logger) Notifier {
	if !cfg.Enabled {
		return &LogNotifier{logger: logger}
	}
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

// LogNotifier writes reports to the log instead of sending them.
type LogNotifier struct {
	logger *errors.Logger
}

func (n *LogNotifier) Send(_ context.Context, subject, body string) error {
	if n.logger != nil {
		n.logger.Info("Notification delivery disabled, logging report", "subject", subject, "body", body)
	}
	return nil
}

// SMTPNotifier sends plain-text mail to the HR address.
type SMTPNotifier struct {
	cfg    config.NotifyConfig
	logger *errors.Logger
}

func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) error {
	if subject == "" {
		subject = n.cfg.Subject
	}
	if err := n.send(ctx, subject, body); err != nil {
		return errors.NewNetworkError(errors.ErrCodeNotificationFailed, "failed to send report email", err).
			WithContext("smtp_host", n.cfg.SMTPHost).
			WithContext("recipient", n.cfg.HREmail)
	}
	if n.logger != nil {
		n.logger.Info("Report email sent", "recipient", n.cfg.HREmail)
	}
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, subject, body string) error {
	msg, err := n.message(subject, body)
	if err != nil {
		return err
	}
	client, err := n.client()
	if err != nil {
		return err
	}
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func (n *SMTPNotifier) message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(n.cfg.HREmail); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (n *SMTPNotifier) client() (*mail.Client, error) {
	policy, err := tlsPolicy(n.cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{
		mail.WithPort(n.cfg.SMTPPort),
		mail.WithTLSPolicy(policy),
	}
	if n.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(n.cfg.Timeout))
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password))
	}
	return mail.NewClient(n.cfg.SMTPHost, opts...)
}

// tlsPolicy maps notify.tlsPolicy onto go-mail. Opportunistic upgrades with
// STARTTLS when the server offers it.
func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "opportunistic":
		return mail.TLSOpportunistic, nil
	case "mandatory":
		return mail.TLSMandatory, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.TLSOpportunistic, fmt.Errorf("unknown notify.tlsPolicy %q", name)
	}
}
