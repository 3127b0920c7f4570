package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSOptions configures the CORS middleware. Zero values fall back to the
// contact endpoint's defaults.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods string
	AllowedHeaders string
	MaxAge         time.Duration
}

// CORS provides a simple allowlist-based CORS middleware.
// If AllowedOrigins contains "*", every response carries a wildcard origin,
// with or without an Origin header on the request.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	allowAny := false
	allow := map[string]struct{}{}
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		allow[origin] = struct{}{}
	}

	allowedHeaders := opts.AllowedHeaders
	if allowedHeaders == "" {
		allowedHeaders = "Authorization, Content-Type"
	}
	allowedMethods := opts.AllowedMethods
	if allowedMethods == "" {
		allowedMethods = "GET, POST, OPTIONS"
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			allowed := false
			switch {
			case allowAny:
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			case origin != "" && isAllowedOrigin(allow, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				allowed = true
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Max-Age", maxAgeSeconds)
			}

			if r.Method == http.MethodOptions && allowed && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowedOrigin(allow map[string]struct{}, origin string) bool {
	_, ok := allow[origin]
	return ok
}
