package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"tahfidz/internal/logging"
)

// Mailer sends the admin an e-mail copy of approval requests. A Mailer
// without a host is disabled and every send is a no-op.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	log      *zap.Logger

	dial func(m *gomail.Message) error
}

// NewMailer builds a mailer over SMTP. from defaults to the username.
func NewMailer(host string, port int, username, password string, logger *zap.Logger) *Mailer {
	m := &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     username,
		log:      logging.OrNop(logger),
	}
	m.dial = func(msg *gomail.Message) error {
		return gomail.NewDialer(m.host, m.port, m.username, m.password).DialAndSend(msg)
	}
	return m
}

// Enabled reports whether SMTP is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != ""
}

// Send delivers a plain-text message. Callers treat errors as best effort.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if !m.Enabled() || to == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.dial(msg); err != nil {
		m.log.Warn("failed to send email", zap.String("to", to), zap.Error(err))
		return err
	}
	m.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Subject derives a one-line subject from the first line of a message.
func Subject(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.Trim(line, " *,")
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}
