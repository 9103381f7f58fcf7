// Package mailer sends rendered previews as real test emails through a
// configured SMTP relay.
package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/metrics"
	"github.com/maildeck/maildeck/internal/model"
)

// ErrDisabled is returned when no relay is configured.
var ErrDisabled = errors.New("smtp relay not configured")

// Mailer delivers test messages over one SMTP relay.
type Mailer struct {
	cfg config.SMTPConfig
}

func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Enabled reports whether a relay is configured.
func (m *Mailer) Enabled() bool { return m.cfg.Enabled }

// SendTest delivers a rendered template to one recipient.
func (m *Mailer) SendTest(to string, rendered model.Rendered) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	data := buildEmailData(m.cfg.From, to, rendered)

	err := m.deliver(to, data)
	if err != nil {
		metrics.IncTestSend("failed")
		return fmt.Errorf("test send to %s: %w", to, err)
	}
	metrics.IncTestSend("sent")
	return nil
}

func (m *Mailer) deliver(to string, data []byte) error {
	var (
		c   *smtp.Client
		err error
	)
	if m.cfg.StartTLS {
		c, err = smtp.DialStartTLS(m.cfg.Addr, nil)
	} else {
		c, err = smtp.Dial(m.cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	defer c.Close()

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("relay auth: %w", err)
		}
	}

	if err := c.SendMail(m.cfg.From, []string{to}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return c.Quit()
}

// buildEmailData constructs RFC 5322 email data
func buildEmailData(from, to string, rendered model.Rendered) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", rendered.Subject))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.New().String(), extractDomainFromEmail(from)))

	if rendered.HTMLContent != "" {
		boundary := uuid.New().String()
		buf.WriteString("MIME-Version: 1.0\r\n")
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
		buf.WriteString("\r\n")

		if rendered.TextContent != "" {
			buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
			buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
			buf.WriteString("\r\n")
			buf.WriteString(rendered.TextContent)
			buf.WriteString("\r\n")
		}

		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(rendered.HTMLContent)
		buf.WriteString("\r\n")

		buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	} else {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(rendered.TextContent)
	}

	return buf.Bytes()
}

func extractDomainFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return "localhost"
}
