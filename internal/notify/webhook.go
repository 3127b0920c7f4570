package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/contact-relay/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var webhookTracer = otel.Tracer("contactrelay.internal.notify.webhook")

// Webhook payload flavours.
const (
	FlavorDiscord = "discord"
	FlavorSlack   = "slack"
)

// WebhookConfig describes a chat webhook endpoint.
type WebhookConfig struct {
	URL     string
	Flavor  string
	Timeout time.Duration
}

// WebhookNotifier posts submissions to a Discord or Slack incoming webhook.
type WebhookNotifier struct {
	url    string
	flavor string
	http   *http.Client
	logger *logging.Logger
}

// NewWebhookNotifier returns nil when no URL is configured.
func NewWebhookNotifier(cfg WebhookConfig, logger *logging.Logger) *WebhookNotifier {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	flavor := strings.ToLower(strings.TrimSpace(cfg.Flavor))
	if flavor != FlavorSlack {
		flavor = FlavorDiscord
	}
	return &WebhookNotifier{
		url:    cfg.URL,
		flavor: flavor,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Color  int            `json:"color"`
	Fields []discordField `json:"fields"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify posts msg to the webhook. Any non-2xx answer is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if n == nil {
		return errors.New("notify: webhook not configured")
	}
	ctx, span := webhookTracer.Start(ctx, "notify.webhook")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.flavor", n.flavor),
		attribute.Bool("webhook.alert", msg.Alert),
	)

	payload, err := json.Marshal(n.payload(msg))
	if err != nil {
		return fmt.Errorf("notify: encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook request failed")
		n.logger.Error("webhook request failed", "error", err)
		return fmt.Errorf("notify: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		span.SetStatus(codes.Error, resp.Status)
		n.logger.Error("webhook returned error status", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("webhook notification sent", "flavor", n.flavor, "alert", msg.Alert)
	return nil
}

func (n *WebhookNotifier) payload(msg Message) any {
	if n.flavor == FlavorSlack {
		color := "good"
		if msg.Alert {
			color = "warning"
		}
		fields := make([]slackField, 0, len(msg.Fields))
		for _, f := range msg.Fields {
			fields = append(fields, slackField{Title: f.Name, Value: Truncate(f.Value, maxFieldValue), Short: f.Inline})
		}
		return slackPayload{
			Text:        fmt.Sprintf("%s %s from *%s*", msg.Prefix(), msg.Title, msg.From),
			Attachments: []slackAttachment{{Color: color, Fields: fields}},
		}
	}

	fields := make([]discordField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, discordField{Name: f.Name, Value: Truncate(f.Value, maxFieldValue), Inline: f.Inline})
	}
	return discordPayload{
		Content: fmt.Sprintf("%s %s from **%s**", msg.Prefix(), msg.Title, msg.From),
		Embeds:  []discordEmbed{{Color: msg.Color(), Fields: fields}},
	}
}

var _ Notifier = (*WebhookNotifier)(nil)
