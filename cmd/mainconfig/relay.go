package mainconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	appconfig "github.com/wolfman30/contact-relay/internal/config"
	httpmiddleware "github.com/wolfman30/contact-relay/internal/http/middleware"
	"github.com/wolfman30/contact-relay/internal/leads"
	"github.com/wolfman30/contact-relay/internal/notify"
	"github.com/wolfman30/contact-relay/internal/observability/metrics"
	"github.com/wolfman30/contact-relay/internal/odoo"
	"github.com/wolfman30/contact-relay/internal/turnstile"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

// Relay is the wired submission pipeline shared by the HTTP server and the
// Lambda adapter.
type Relay struct {
	Service *leads.Service
	// Repo is nil when the datastore sink is off.
	Repo    leads.Repository
	Limiter httpmiddleware.Limiter
	Metrics *metrics.SubmissionMetrics

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (r *Relay) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// BuildRelay constructs every configured sink and the service over them.
func BuildRelay(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*Relay, error) {
	relay := &Relay{Metrics: metrics.NewSubmissionMetrics(reg)}

	sinks := leads.Sinks{}
	svcCfg := leads.ServiceConfig{
		TeamID:       cfg.OdooTeamID,
		Metrics:      relay.Metrics,
		Logger:       logger,
		AuditTimeout: cfg.OutboundTimeout,
		ExposeDebug:  cfg.ExposeDebugDetail,
		DebugInfo:    leads.DebugInfo(cfg.OdooURL, cfg.OdooDatabase, cfg.OdooUser),
		Verifier: turnstile.NewClient(turnstile.Config{
			Secret:    cfg.TurnstileSecretKey,
			VerifyURL: cfg.TurnstileVerifyURL,
			Timeout:   cfg.OutboundTimeout,
		}),
	}
	if cfg.TurnstileSecretKey == "" {
		logger.Warn("TURNSTILE_SECRET_KEY not set; every submission will fail verification")
	}
	if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail == "" {
		logger.Warn("SENDGRID_API_KEY set without SENDGRID_FROM_EMAIL; sendgrid channel disabled")
	}

	if cfg.CRMEnabled() {
		crm, err := odoo.NewClient(odoo.Config{
			BaseURL:      cfg.OdooURL,
			Database:     cfg.OdooDatabase,
			User:         cfg.OdooUser,
			Password:     cfg.OdooPassword,
			BypassSecret: cfg.OdooBypassSecret,
			Timeout:      cfg.OutboundTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("odoo client: %w", err)
		}
		svcCfg.CRM = crm
		sinks.CRM = true
	}

	if cfg.DatastoreEnabled() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			relay.Close()
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		relay.closers = append(relay.closers, pool.Close)
		pingCtx, cancel := context.WithTimeout(ctx, cfg.OutboundTimeout)
		if err := pool.Ping(pingCtx); err != nil {
			logger.Warn("audit datastore unreachable at startup", "error", err)
		}
		cancel()
		relay.Repo = leads.NewPostgresRepository(pool)
		svcCfg.Audit = relay.Repo
		sinks.Datastore = true
	}

	if cfg.NotificationEnabled() {
		fanout, err := buildNotifier(ctx, cfg, logger)
		if err != nil {
			relay.Close()
			return nil, err
		}
		if fanout.Len() > 0 {
			svcCfg.Notifier = fanout
			sinks.Notification = true
		}
	}

	svcCfg.Sinks = sinks
	svc, err := leads.NewService(svcCfg)
	if err != nil {
		relay.Close()
		return nil, err
	}
	relay.Service = svc
	relay.Limiter = buildLimiter(ctx, cfg, logger, relay)

	logger.Info("contact relay sinks",
		"crm", sinks.CRM,
		"datastore", sinks.Datastore,
		"notification", sinks.Notification,
	)
	return relay, nil
}

func buildNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*notify.Fanout, error) {
	fanout := notify.NewFanout(logger).WithTimeout(cfg.OutboundTimeout)

	if webhook := notify.NewWebhookNotifier(notify.WebhookConfig{
		URL:     cfg.WebhookURL,
		Flavor:  cfg.WebhookFlavor,
		Timeout: cfg.OutboundTimeout,
	}, logger); webhook != nil {
		fanout.Add("webhook", webhook)
	}

	if !cfg.EmailEnabled() {
		return fanout, nil
	}
	var sender notify.EmailSender
	switch {
	case cfg.SendGridConfigured():
		sender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case cfg.SESFromEmail != "":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		sender = notify.NewSESSender(NewSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	default:
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPass,
			FromEmail: cfg.SMTPFrom,
			FromName:  cfg.SendGridFromName,
			Timeout:   cfg.OutboundTimeout,
		}, logger)
	}
	if email := notify.NewEmailNotifier(sender, cfg.NotificationEmail); email != nil {
		fanout.Add("email", email)
	}
	return fanout, nil
}

// buildLimiter prefers the shared Redis window and falls back to per-process
// buckets when Redis is not configured or not reachable.
func buildLimiter(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, relay *Relay) httpmiddleware.Limiter {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.OutboundTimeout)
		defer cancel()
		err := rdb.Ping(pingCtx).Err()
		if err == nil {
			relay.closers = append(relay.closers, func() { _ = rdb.Close() })
			return httpmiddleware.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)
		}
		logger.Warn("redis unreachable, using in-process rate limiter", "error", err)
		_ = rdb.Close()
	}
	return httpmiddleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}
