package leads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/contact-relay/internal/notify"
	"github.com/wolfman30/contact-relay/internal/observability/metrics"
	"github.com/wolfman30/contact-relay/internal/odoo"
	"github.com/wolfman30/contact-relay/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MaxDiagnosticLen bounds the CRM diagnostic carried through a submission.
const MaxDiagnosticLen = 1800

const successMessage = "Form submitted successfully"

var tracer = otel.Tracer("contactrelay.internal.leads")

// Verifier checks a human-verification token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// LeadCreator creates a CRM lead and returns its identifier.
type LeadCreator interface {
	CreateLead(ctx context.Context, lead odoo.Lead) (int64, error)
}

// Sinks selects which delivery targets a Service uses.
type Sinks struct {
	CRM          bool
	Datastore    bool
	Notification bool
}

// ServiceConfig wires a Service. Clients for inactive sinks may be nil.
type ServiceConfig struct {
	Sinks    Sinks
	TeamID   int
	Verifier Verifier
	CRM      LeadCreator
	Audit    Repository
	Notifier notify.Notifier
	Metrics  *metrics.SubmissionMetrics
	Logger   *logging.Logger

	// AuditTimeout bounds the audit append. Zero means 5s.
	AuditTimeout time.Duration
	// ExposeDebug adds the CRM diagnostic to 500 responses.
	ExposeDebug bool
	// DebugInfo is attached to notifications when the CRM fails.
	DebugInfo string
}

// Service runs one submission through validation, verification and delivery.
type Service struct {
	sinks        Sinks
	teamID       int
	verifier     Verifier
	crm          LeadCreator
	audit        Repository
	notifier     notify.Notifier
	metrics      *metrics.SubmissionMetrics
	logger       *logging.Logger
	auditTimeout time.Duration
	exposeDebug  bool
	debugInfo    string

	now   func() time.Time
	newID func() string
}

// NewService validates the sink selection against the supplied clients.
func NewService(cfg ServiceConfig) (*Service, error) {
	if !cfg.Sinks.CRM && !cfg.Sinks.Notification {
		return nil, ErrNoAcceptingSink
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("%w: verifier", ErrMissingDependency)
	}
	if cfg.Sinks.CRM && cfg.CRM == nil {
		return nil, fmt.Errorf("%w: crm", ErrMissingDependency)
	}
	if cfg.Sinks.Datastore && cfg.Audit == nil {
		return nil, fmt.Errorf("%w: datastore", ErrMissingDependency)
	}
	if cfg.Sinks.Notification && cfg.Notifier == nil {
		return nil, fmt.Errorf("%w: notification", ErrMissingDependency)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	auditTimeout := cfg.AuditTimeout
	if auditTimeout <= 0 {
		auditTimeout = 5 * time.Second
	}
	return &Service{
		sinks:        cfg.Sinks,
		teamID:       cfg.TeamID,
		verifier:     cfg.Verifier,
		crm:          cfg.CRM,
		audit:        cfg.Audit,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		logger:       logger,
		auditTimeout: auditTimeout,
		exposeDebug:  cfg.ExposeDebug,
		debugInfo:    cfg.DebugInfo,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}, nil
}

// DeliveryOutcome records what happened to one submission's sinks. It only
// lives for the duration of the request.
type DeliveryOutcome struct {
	CRMOK          bool
	LeadID         int64
	CRMError       string
	NotifyOK       bool
	AuditAttempted bool
}

// Accepted reports whether at least one accepting sink took the submission.
func (o DeliveryOutcome) Accepted() bool {
	return o.CRMOK || o.NotifyOK
}

// ResponseBody is the JSON returned to the form.
type ResponseBody struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    Reason `json:"code,omitempty"`
	Debug   string `json:"debug,omitempty"`
}

// Response pairs an HTTP status with its body.
type Response struct {
	Status int
	Body   ResponseBody
}

func accepted() Response {
	return Response{Status: http.StatusOK, Body: ResponseBody{Success: true, Message: successMessage}}
}

func failure(reason Reason) Response {
	return Response{Status: reason.Status(), Body: ResponseBody{Error: reason.Message(), Code: reason}}
}

// Handle parses a raw request body and submits it. A panic anywhere in the
// pipeline becomes a generic 500.
func (s *Service) Handle(ctx context.Context, body []byte, remoteIP string) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("submission panicked", "panic", fmt.Sprint(r))
			s.metrics.ObserveSubmission(string(ReasonUnhandled))
			resp = failure(ReasonUnhandled)
		}
	}()

	sub, err := ParseSubmission(body)
	if err != nil {
		return s.rejected(err)
	}
	return s.Submit(ctx, sub, remoteIP)
}

// Submit validates, verifies and delivers a submission.
func (s *Service) Submit(ctx context.Context, sub Submission, remoteIP string) Response {
	ctx, span := tracer.Start(ctx, "leads.submit")
	defer span.End()
	span.SetAttributes(attribute.String("leads.request_type", sub.RequestType))

	if err := sub.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return s.rejected(err)
	}

	start := time.Now()
	err := s.verifier.Verify(ctx, sub.VerificationToken, remoteIP)
	s.metrics.ObserveLatency("turnstile", time.Since(start).Seconds())
	if err != nil {
		span.SetStatus(codes.Error, "verification failed")
		return s.rejected(reject(ReasonVerificationFailed, err))
	}

	// Once verified, the submission is delivered even if the caller goes
	// away. Each sink keeps its own timeout.
	outcome := s.deliver(context.WithoutCancel(ctx), sub, remoteIP)
	span.SetAttributes(
		attribute.Bool("leads.crm_ok", outcome.CRMOK),
		attribute.Bool("leads.notify_ok", outcome.NotifyOK),
	)

	if !outcome.Accepted() {
		s.logger.Error("submission reached no sink", "crm_error", outcome.CRMError)
		s.metrics.ObserveSubmission(string(ReasonInternalDeliveryFailure))
		span.SetStatus(codes.Error, "no sink accepted submission")
		resp := failure(ReasonInternalDeliveryFailure)
		if s.exposeDebug {
			resp.Body.Debug = outcome.CRMError
		}
		return resp
	}

	s.metrics.ObserveSubmission("accepted")
	return accepted()
}

func (s *Service) rejected(err error) Response {
	var rej *RejectionError
	if !errors.As(err, &rej) {
		rej = reject(ReasonUnhandled, err)
	}
	if rej.Reason.Status() >= http.StatusInternalServerError {
		s.logger.Error("submission failed", "reason", rej.Reason, "error", err)
	} else {
		s.logger.Info("submission rejected", "reason", rej.Reason, "error", err)
	}
	s.metrics.ObserveSubmission(string(rej.Reason))
	return failure(rej.Reason)
}

// deliver runs CRM creation, audit append and notification in that order.
// Each step runs regardless of how the previous ones went.
func (s *Service) deliver(ctx context.Context, sub Submission, remoteIP string) DeliveryOutcome {
	var outcome DeliveryOutcome

	if s.sinks.CRM {
		s.deliverCRM(ctx, sub, &outcome)
	}
	if s.sinks.Datastore {
		outcome.AuditAttempted = true
		s.appendAudit(ctx, sub, remoteIP)
	}
	if s.sinks.Notification {
		s.deliverNotification(ctx, sub, &outcome)
	}
	return outcome
}

func (s *Service) deliverCRM(ctx context.Context, sub Submission, outcome *DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome.CRMOK = false
			outcome.CRMError = notify.Truncate(fmt.Sprintf("crm panic: %v", r), MaxDiagnosticLen)
			s.logger.Error("crm delivery panicked", "panic", fmt.Sprint(r))
			s.metrics.ObserveSink("crm", false)
		}
	}()

	start := time.Now()
	id, err := s.crm.CreateLead(ctx, sub.ToLead(s.teamID))
	s.metrics.ObserveLatency("odoo", time.Since(start).Seconds())
	if err != nil {
		outcome.CRMError = notify.Truncate(err.Error(), MaxDiagnosticLen)
		s.logger.Error("crm delivery failed", "error", err)
		s.metrics.ObserveSink("crm", false)
		return
	}
	outcome.CRMOK = true
	outcome.LeadID = id
	s.logger.Info("crm lead created", "lead_id", id)
	s.metrics.ObserveSink("crm", true)
}

func (s *Service) appendAudit(ctx context.Context, sub Submission, remoteIP string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("audit append panicked", "panic", fmt.Sprint(r))
			s.metrics.ObserveSink("datastore", false)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.auditTimeout)
	defer cancel()

	rec := Record{
		ID:          s.newID(),
		Submission:  sub,
		RemoteIP:    remoteIP,
		SubmittedAt: s.now().UTC(),
	}
	start := time.Now()
	err := s.audit.Append(ctx, rec)
	s.metrics.ObserveLatency("datastore", time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("audit append failed", "submission_id", rec.ID, "error", err)
		s.metrics.ObserveSink("datastore", false)
		return
	}
	s.metrics.ObserveSink("datastore", true)
}

func (s *Service) deliverNotification(ctx context.Context, sub Submission, outcome *DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome.NotifyOK = false
			s.logger.Error("notification panicked", "panic", fmt.Sprint(r))
			s.metrics.ObserveSink("notification", false)
		}
	}()

	summary := notify.Summary{
		RequestLabel: sub.RequestLabel(),
		Name:         sub.Name,
		Email:        sub.Email,
		Company:      sub.Company,
		Role:         sub.Role,
		Message:      sub.Message,
	}
	if s.sinks.CRM && !outcome.CRMOK {
		summary.CRMFailed = true
		summary.CRMError = outcome.CRMError
		summary.Debug = s.debugInfo
	}

	start := time.Now()
	err := s.notifier.Notify(ctx, notify.Format(summary))
	s.metrics.ObserveLatency("notification", time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("notification failed", "error", err)
		s.metrics.ObserveSink("notification", false)
		return
	}
	outcome.NotifyOK = true
	s.metrics.ObserveSink("notification", true)
}

// DebugInfo summarises the CRM target for operators. Only the first ten
// characters of the user are shown.
func DebugInfo(baseURL, database, user string) string {
	shown := "not set"
	if user != "" {
		shown = notify.Truncate(user, 10) + "..."
	}
	return fmt.Sprintf("URL: %s\nDB: %s\nUser: %s", baseURL, database, shown)
}
