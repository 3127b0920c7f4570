package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/contact-relay/internal/http/middleware"
	"github.com/wolfman30/contact-relay/internal/leads"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// RateLimiter guards the public contact endpoint. Nil disables limiting.
	RateLimiter     httpmiddleware.Limiter
	AdminAuthSecret string
	// TrustProxyHeaders lets forwarding headers (X-Forwarded-For,
	// CF-Connecting-IP) pick the rate-limit bucket. Enable it only behind a
	// proxy that overwrites them.
	TrustProxyHeaders bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	rateKey := httpmiddleware.RemoteAddrKey
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
		rateKey = httpmiddleware.CloudflareKey
	}
	r.Use(middleware.Recoverer)
	contact := cfg.LeadsHandler
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(httpmiddleware.CORSOptions{AllowedOrigins: cfg.CORSAllowedOrigins}))
		contact = contact.WithExternalCORS()
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(public chi.Router) {
		if cfg.RateLimiter != nil {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimiter, rateKey, cfg.Logger))
		}
		// The leads handler answers OPTIONS and 405 itself.
		public.Handle("/contact", contact)
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/submissions", cfg.LeadsHandler.ListSubmissions)
			admin.Get("/submissions/{id}", cfg.LeadsHandler.GetSubmission)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
