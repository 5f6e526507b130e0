// Package email sends multipart notifications over authenticated SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
)

// Sender delivers notifications over SMTP with STARTTLS.
type Sender struct {
	config *Config
}

// NewSender creates an email sender from a validated config.
func NewSender(config *Config) (*Sender, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid SMTP config")
	}
	return &Sender{config: config}, nil
}

// Name returns the transport name for notifier registration.
func (s *Sender) Name() string {
	return "email"
}

// Send delivers one message as multipart/alternative with a plain text part
// and an HTML part carrying the same content.
func (s *Sender) Send(ctx context.Context, address, subject, plainBody, htmlBody string) error {
	msg := s.buildMessage(address, subject, plainBody, htmlBody)

	addr := s.config.GetServerAddress()
	slog.Debug("connecting to SMTP server", "addr", addr)

	client, err := smtp.Dial(addr)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to SMTP server %s", addr)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.SMTPHost}); err != nil {
			return errors.Wrap(err, "STARTTLS failed")
		}
	}

	if s.config.SMTPUsername != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return errors.Wrap(err, "SMTP authentication failed")
		}
	}

	if err := client.Mail(s.config.FromEmail); err != nil {
		return errors.Wrap(err, "MAIL FROM rejected")
	}
	if err := client.Rcpt(address); err != nil {
		return errors.Wrapf(err, "RCPT TO rejected for %s", address)
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "DATA failed")
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return errors.Wrap(err, "failed to write message body")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to finish message body")
	}

	return client.Quit()
}

const mimeBoundary = "socialbot-alt-boundary"

func (s *Sender) buildMessage(recipient, subject, plainBody, htmlBody string) string {
	from := s.config.FromEmail
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.FromEmail)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(plainBody)
	b.WriteString("\r\n")

	if htmlBody != "" {
		fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(htmlBody)
		b.WriteString("\r\n")
	}

	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return b.String()
}
