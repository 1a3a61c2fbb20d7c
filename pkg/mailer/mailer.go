package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/opsgrid/patchwin-api/pkg/config"
)

// Mailer delivers run reports over SMTP.
type Mailer struct {
	host   string
	port   int
	sender string
	auth   smtp.Auth
}

// New builds a mailer from SMTP config. Auth is omitted when no username is
// configured, which is the common case for internal relays.
func New(cfg config.SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{host: cfg.Host, port: cfg.Port, sender: cfg.Sender, auth: auth}
}

// SendHTML sends an HTML message to a single recipient.
func (m *Mailer) SendHTML(to, subject, htmlBody string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, m.auth, m.sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}
