// ============================================================================
// internal/notify/notify.go
// Notification sender: SMTP delivery with a log fallback for development
// ============================================================================

package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"hostelpass/internal/shared"
)

// Sender delivers a rendered notification. Every call site treats failure as
// non-fatal: the triggering domain operation still reports success.
type Sender interface {
	Send(to, subject, htmlBody string) (messageID string, err error)
}

// NewSender picks an implementation from config: real SMTP when a host is
// configured, otherwise a logger that just records what would have been sent.
func NewSender(cfg shared.SMTPConfig) Sender {
	if cfg.Host == "" {
		log.Println("Warning: SMTP_HOST not set, email notifications will be logged only")
		return &LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender delivers mail over authenticated SMTP.
type SMTPSender struct {
	cfg shared.SMTPConfig
}

// Send builds a MIME message and submits it to the configured relay.
func (s *SMTPSender) Send(to, subject, htmlBody string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient address is required")
	}

	messageID := uuid.NewString()

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Message-ID: <%s@hostelpass>\r\n", messageID)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := s.cfg.Host + ":" + s.cfg.Port
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return messageID, nil
}

// LogSender records notifications instead of delivering them.
type LogSender struct{}

func (s *LogSender) Send(to, subject, htmlBody string) (string, error) {
	messageID := uuid.NewString()
	log.Printf("[mail] to=%s subject=%q bytes=%d id=%s", to, subject, len(htmlBody), messageID)
	return messageID, nil
}
