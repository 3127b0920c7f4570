package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Odoo CRM
	OdooURL          string
	OdooDatabase     string
	OdooUser         string
	OdooPassword     string
	OdooTeamID       int
	OdooBypassSecret string

	// Cloudflare Turnstile
	TurnstileSecretKey string
	TurnstileVerifyURL string

	// Chat webhook (Discord or Slack)
	WebhookURL    string
	WebhookFlavor string

	// Audit log datastore
	DatabaseURL string

	// Email notification channel
	NotificationEmail string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string

	OutboundTimeout    time.Duration
	ExposeDebugDetail  bool
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	RateLimitBurst     int
	AdminJWTSecret     string
	TrustProxyHeaders  bool

	// Sink toggles; a sink also needs its settings present to be active.
	SinkCRM          bool
	SinkDatastore    bool
	SinkNotification bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OdooURL:          strings.TrimRight(getEnv("ODOO_URL", ""), "/"),
		OdooDatabase:     getEnv("ODOO_DATABASE", ""),
		OdooUser:         getEnv("ODOO_API_USER", ""),
		OdooPassword:     getEnv("ODOO_API_PASSWORD", ""),
		OdooTeamID:       getEnvAsInt("ODOO_TEAM_ID", 10),
		OdooBypassSecret: getEnv("ODOO_BYPASS_SECRET", ""),

		TurnstileSecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),
		TurnstileVerifyURL: getEnv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookFlavor: strings.ToLower(strings.TrimSpace(getEnv("WEBHOOK_FLAVOR", "discord"))),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Contact Form"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:          getEnv("SMTP_USER", ""),
		SMTPPass:          getEnv("SMTP_PASS", ""),
		SMTPFrom:          getEnv("SMTP_FROM", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OutboundTimeout:    getEnvAsDuration("OUTBOUND_TIMEOUT", 5*time.Second),
		ExposeDebugDetail:  getEnvAsBool("EXPOSE_DEBUG_DETAIL", false),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		TrustProxyHeaders:  getEnvAsBool("TRUST_PROXY_HEADERS", false),

		SinkCRM:          getEnvAsBool("SINK_CRM", true),
		SinkDatastore:    getEnvAsBool("SINK_DATASTORE", true),
		SinkNotification: getEnvAsBool("SINK_NOTIFICATION", true),
	}
}

// CRMEnabled reports whether Odoo delivery is switched on and configured.
func (c *Config) CRMEnabled() bool {
	return c.SinkCRM && c.OdooURL != "" && c.OdooUser != ""
}

// DatastoreEnabled reports whether the audit log has somewhere to write.
func (c *Config) DatastoreEnabled() bool {
	return c.SinkDatastore && c.DatabaseURL != ""
}

// NotificationEnabled reports whether at least one notification channel is configured.
func (c *Config) NotificationEnabled() bool {
	if !c.SinkNotification {
		return false
	}
	return c.WebhookURL != "" || c.EmailEnabled()
}

// EmailEnabled reports whether an email channel is configured.
func (c *Config) EmailEnabled() bool {
	if c.NotificationEmail == "" {
		return false
	}
	return c.SendGridConfigured() || c.SESFromEmail != "" || c.SMTPHost != ""
}

// SendGridConfigured reports whether SendGrid has both a key and a sender address.
func (c *Config) SendGridConfigured() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
