package leads

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

const maxRequestBytes = 64 << 10

// Handler serves the public contact endpoint and the operator listing.
type Handler struct {
	service *Service
	repo    Repository
	logger  *logging.Logger
	// externalCORS leaves CORS headers to a router-level middleware.
	externalCORS bool
}

// NewHandler creates a new leads handler. repo may be nil when the
// datastore sink is disabled; the listing then reports 503.
func NewHandler(service *Service, repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		repo:    repo,
		logger:  logger,
	}
}

// WithExternalCORS returns a copy of h that writes no CORS headers of its
// own, so an origin allowlist mounted in front of it decides alone.
func (h *Handler) WithExternalCORS() *Handler {
	c := *h
	c.externalCORS = true
	return &c
}

// ServeHTTP handles the contact form endpoint: OPTIONS preflight, POST
// submission, anything else is 405. Unless CORS is handled upstream, every
// response carries permissive CORS headers.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.externalCORS {
		setCORSHeaders(w)
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		h.submit(w, r)
	default:
		writeJSON(w, failure(ReasonMethodNotAllowed))
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		h.logger.Error("failed to read request body", "error", err)
		writeJSON(w, failure(ReasonInvalidBody))
		return
	}
	writeJSON(w, h.service.Handle(r.Context(), body, ClientIP(r)))
}

// ListSubmissionsResponse is the response for listing audit records
type ListSubmissionsResponse struct {
	Submissions []Record `json:"submissions"`
	Count       int      `json:"count"`
	Limit       int      `json:"limit"`
}

// ListSubmissions handles GET /admin/submissions requests
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "datastore not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	records, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list submissions", "error", err)
		http.Error(w, "failed to list submissions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ListSubmissionsResponse{
		Submissions: records,
		Count:       len(records),
		Limit:       limit,
	})
}

// GetSubmission handles GET /admin/submissions/{id} requests
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "datastore not configured", http.StatusServiceUnavailable)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrSubmissionNotFound) {
		http.Error(w, "submission not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get submission", "submission_id", id, "error", err)
		http.Error(w, "failed to get submission", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// ClientIP returns the caller's address. Cloudflare's CF-Connecting-IP wins,
// then the RemoteAddr (already rewritten by chi's RealIP when mounted).
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
