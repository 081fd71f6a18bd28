// Package notify sends cycle summary and failure emails over SMTP.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/docrelay/docrelay/internal/core/domain"
)

// Config holds SMTP settings and the recipient list.
type Config struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// Enabled reports whether notifications are configured at all.
func (c Config) Enabled() bool {
	return c.Host != "" && len(c.Recipients) > 0
}

// Mailer delivers notifications. Each message is sent per recipient so one
// bad address cannot block the rest; delivery counts as successful when at
// least one recipient accepted the message.
type Mailer struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	// send is a seam for tests; production uses gomail.
	send func(m *gomail.Message) error
}

// NewMailer builds a Mailer from config.
func NewMailer(cfg Config, log *slog.Logger) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{
		cfg:  cfg,
		log:  log,
		now:  time.Now,
		send: func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// Notify sends the end-of-cycle summary email.
func (m *Mailer) Notify(stats *domain.CycleStats) error {
	subject := fmt.Sprintf("Document Processing Complete - %s", stats.DateFolder)
	body, err := summaryBody(stats)
	if err != nil {
		return fmt.Errorf("render summary body: %w", err)
	}
	return m.deliver(subject, body)
}

// NotifyFailure sends an alert about a failed cycle or phase.
func (m *Mailer) NotifyFailure(context, message string) error {
	subject := fmt.Sprintf("URGENT: Document Processing Failure - %s", context)
	body, err := failureBody(context, message, m.now())
	if err != nil {
		return fmt.Errorf("render failure body: %w", err)
	}
	return m.deliver(subject, body)
}

func (m *Mailer) deliver(subject, htmlBody string) error {
	if !m.cfg.Enabled() {
		m.log.Warn("notifications not configured, skipping", "subject", subject)
		return nil
	}

	sent := 0
	var lastErr error
	for _, to := range m.cfg.Recipients {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.cfg.From)
		msg.SetHeader("To", to)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/html", htmlBody)

		if err := m.send(msg); err != nil {
			m.log.Error("email delivery failed", "to", to, "error", err)
			lastErr = err
			continue
		}
		sent++
		m.log.Info("email delivered", "to", to, "subject", subject)
	}

	if sent == 0 {
		return fmt.Errorf("no recipient accepted %q: %w", subject, lastErr)
	}
	if sent < len(m.cfg.Recipients) {
		m.log.Warn("partial email delivery", "sent", sent, "recipients", len(m.cfg.Recipients))
	}
	return nil
}
