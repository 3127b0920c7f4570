package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/contact-relay/pkg/logging"
)

// SMTPConfig holds configuration for a plain SMTP relay.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SMTPSender sends emails through an SMTP server, upgrading with STARTTLS
// when the server offers it.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *logging.Logger
	dial   func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTPSender returns nil when no host is configured.
func NewSMTPSender(cfg SMTPConfig, logger *logging.Logger) *SMTPSender {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.FromName == "" {
		cfg.FromName = "Contact Form"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	return &SMTPSender{
		cfg:    cfg,
		logger: logger,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		},
	}
}

// Send delivers msg. The whole exchange is bounded by the configured timeout.
func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil {
		return errors.New("notify: smtp sender not configured")
	}

	raw, err := buildMIME(formatAddress(s.cfg.FromName, s.cfg.FromEmail), msg)
	if err != nil {
		return fmt.Errorf("notify: build smtp message: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dial(ctx, addr)
	if err != nil {
		s.logger.Error("smtp dial failed", "error", err, "addr", addr)
		return fmt.Errorf("notify: smtp dial failed: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("notify: smtp handshake failed: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("notify: smtp starttls failed: %w", err)
		}
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify: smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("notify: smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("notify: smtp RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: smtp DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("notify: smtp write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: smtp message rejected: %w", err)
	}
	_ = client.Quit()

	s.logger.Info("email sent via smtp", "to", msg.To, "subject", msg.Subject)
	return nil
}

// buildMIME renders a multipart/alternative message with text and HTML parts.
func buildMIME(from string, msg EmailMessage) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []string{
		"From: " + from,
		"To: " + formatAddress(msg.ToName, msg.To),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mw.Boundary()),
	}
	if msg.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+formatAddress(msg.ReplyToName, msg.ReplyTo))
	}

	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Body},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

var _ EmailSender = (*SMTPSender)(nil)
