package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ODOO_TEAM_ID", "")
	t.Setenv("OUTBOUND_TIMEOUT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("EXPOSE_DEBUG_DETAIL", "")
	t.Setenv("TRUST_PROXY_HEADERS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.OdooTeamID != 10 {
		t.Fatalf("expected default team id 10, got %d", cfg.OdooTeamID)
	}
	if cfg.OutboundTimeout != 5*time.Second {
		t.Fatalf("expected default outbound timeout, got %s", cfg.OutboundTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS by default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ExposeDebugDetail {
		t.Fatalf("expected debug detail hidden by default")
	}
	if cfg.TurnstileVerifyURL == "" {
		t.Fatalf("expected default turnstile verify url")
	}
	if cfg.TrustProxyHeaders {
		t.Fatalf("expected proxy headers untrusted by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("ODOO_URL", "https://crm.example.com/")
	t.Setenv("ODOO_TEAM_ID", "12")
	t.Setenv("OUTBOUND_TIMEOUT", "2500ms")
	t.Setenv("EXPOSE_DEBUG_DETAIL", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("WEBHOOK_FLAVOR", " Slack ")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.OdooURL != "https://crm.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.OdooURL)
	}
	if cfg.OdooTeamID != 12 {
		t.Fatalf("expected team override, got %d", cfg.OdooTeamID)
	}
	if cfg.OutboundTimeout != 2500*time.Millisecond {
		t.Fatalf("expected timeout override, got %s", cfg.OutboundTimeout)
	}
	if !cfg.ExposeDebugDetail {
		t.Fatalf("expected debug detail override")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.WebhookFlavor != "slack" {
		t.Fatalf("expected normalized flavor, got %q", cfg.WebhookFlavor)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("OUTBOUND_TIMEOUT", "soon")
	cfg := Load()
	if cfg.OutboundTimeout != 5*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.OutboundTimeout)
	}
}

func TestSinkEnablement(t *testing.T) {
	cfg := &Config{SinkCRM: true, SinkDatastore: true, SinkNotification: true}
	if cfg.CRMEnabled() || cfg.DatastoreEnabled() || cfg.NotificationEnabled() {
		t.Fatalf("expected sinks disabled without settings")
	}

	cfg.OdooURL = "https://crm.example.com"
	cfg.OdooUser = "api"
	cfg.DatabaseURL = "postgres://localhost/db"
	cfg.NotificationEmail = "sales@example.com"
	cfg.SMTPHost = "mail.example.com"
	if !cfg.CRMEnabled() || !cfg.DatastoreEnabled() || !cfg.NotificationEnabled() {
		t.Fatalf("expected sinks enabled once configured")
	}

	cfg.SinkCRM = false
	cfg.SinkNotification = false
	if cfg.CRMEnabled() || cfg.NotificationEnabled() {
		t.Fatalf("expected toggles to win over settings")
	}
}

func TestSendGridNeedsSenderAddress(t *testing.T) {
	cfg := &Config{SinkNotification: true, NotificationEmail: "sales@example.com", SendGridAPIKey: "SG.key"}
	if cfg.SendGridConfigured() || cfg.EmailEnabled() || cfg.NotificationEnabled() {
		t.Fatalf("expected sendgrid without a from address to stay disabled")
	}

	cfg.SendGridFromEmail = "noreply@example.com"
	if !cfg.SendGridConfigured() || !cfg.EmailEnabled() {
		t.Fatalf("expected sendgrid enabled once the from address is set")
	}
}
