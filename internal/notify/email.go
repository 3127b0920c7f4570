package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

// EmailSender defines the interface for sending emails.
// Implementations can be swapped (SendGrid, SES, SMTP) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To          string
	ToName      string
	ReplyTo     string
	ReplyToName string
	Subject     string
	Body        string // Plain text body
	HTML        string // Optional HTML body
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a new SendGrid email sender.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Contact Form"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	body := msg.Body
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, body, htmlBody)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail(msg.ReplyToName, msg.ReplyTo))
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}

	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// EmailNotifier renders submissions as email and hands them to an EmailSender.
type EmailNotifier struct {
	sender EmailSender
	to     string
}

// NewEmailNotifier returns nil when there is no sender or recipient.
func NewEmailNotifier(sender EmailSender, to string) *EmailNotifier {
	if sender == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	return &EmailNotifier{sender: sender, to: to}
}

// Notify sends msg to the configured recipient with Reply-To set to the submitter.
func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	if n == nil {
		return errors.New("notify: email channel not configured")
	}
	return n.sender.Send(ctx, RenderEmail(msg, n.to))
}

// RenderEmail builds the plain-text and HTML bodies for msg. Every
// user-supplied value is HTML-escaped.
func RenderEmail(msg Message, to string) EmailMessage {
	subject := fmt.Sprintf("%s from %s", msg.Title, msg.From)
	if msg.Alert {
		subject = "[CRM Failed] " + subject
	}

	var text, body strings.Builder
	fmt.Fprintf(&body, `<div style="font-family: sans-serif; max-width: 600px;"><h2>%s</h2><table style="border-collapse: collapse; width: 100%%;">`,
		html.EscapeString(msg.Title))
	for _, f := range msg.Fields {
		fmt.Fprintf(&text, "%s: %s\n", f.Name, f.Value)
		value := strings.ReplaceAll(html.EscapeString(f.Value), "\n", "<br>")
		fmt.Fprintf(&body, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb; vertical-align: top;"><strong>%s</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			html.EscapeString(f.Name), value)
	}
	body.WriteString(`</table></div>`)

	return EmailMessage{
		To:          to,
		ReplyTo:     msg.ReplyTo,
		ReplyToName: msg.ReplyToName,
		Subject:     subject,
		Body:        text.String(),
		HTML:        body.String(),
	}
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ Notifier    = (*EmailNotifier)(nil)
)
