package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/contact-relay/cmd/mainconfig"
	"github.com/wolfman30/contact-relay/internal/api/router"
	appconfig "github.com/wolfman30/contact-relay/internal/config"
	"github.com/wolfman30/contact-relay/internal/http/middleware"
	"github.com/wolfman30/contact-relay/internal/leads"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting contact relay API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay, err := mainconfig.BuildRelay(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer relay.Close()

	if limiter, ok := relay.Limiter.(*middleware.RateLimiter); ok {
		go limiter.RunEviction(ctx, 5*time.Minute, 10*time.Minute)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(cfg, logger, relay, reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHandler(cfg *appconfig.Config, logger *logging.Logger, relay *mainconfig.Relay, reg *prometheus.Registry) http.Handler {
	return router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(relay.Service, relay.Repo, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        relay.Limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})
}
