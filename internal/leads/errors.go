package leads

import (
	"errors"
	"net/http"
)

// Reason is the machine-readable code of a rejected or failed submission.
type Reason string

const (
	ReasonInvalidBody              Reason = "invalid_body"
	ReasonMissingFields            Reason = "missing_fields"
	ReasonInvalidEmail             Reason = "invalid_email"
	ReasonVerificationTokenMissing Reason = "verification_token_missing"
	ReasonVerificationFailed       Reason = "verification_failed"
	ReasonInternalDeliveryFailure  Reason = "internal_delivery_failure"
	ReasonUnhandled                Reason = "internal_error"
	ReasonMethodNotAllowed         Reason = "method_not_allowed"
)

var reasonMessages = map[Reason]string{
	ReasonInvalidBody:              "Invalid request body",
	ReasonMissingFields:            "Missing required fields",
	ReasonInvalidEmail:             "Invalid email format",
	ReasonVerificationTokenMissing: "Verification token missing",
	ReasonVerificationFailed:       "Verification failed",
	ReasonInternalDeliveryFailure:  "Unable to process your request. Please try again or contact us directly.",
	ReasonUnhandled:                "Internal server error",
	ReasonMethodNotAllowed:         "Method not allowed",
}

// Message is the user-facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Status is the HTTP status reported for the reason.
func (r Reason) Status() int {
	switch r {
	case ReasonInternalDeliveryFailure, ReasonUnhandled:
		return http.StatusInternalServerError
	case ReasonMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusBadRequest
	}
}

// RejectionError reports a submission refused before any delivery attempt.
type RejectionError struct {
	Reason Reason
	// Cause is the underlying error, if any. It is logged, never returned to callers.
	Cause error
}

func (e *RejectionError) Error() string {
	if e.Cause != nil {
		return string(e.Reason) + ": " + e.Cause.Error()
	}
	return string(e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Cause }

func reject(reason Reason, cause error) *RejectionError {
	return &RejectionError{Reason: reason, Cause: cause}
}

var (
	// ErrNoAcceptingSink is returned when neither the CRM nor the notification sink is active.
	ErrNoAcceptingSink = errors.New("leads: at least one of the crm or notification sinks must be active")
	// ErrMissingDependency is returned when an active sink has no client.
	ErrMissingDependency = errors.New("leads: active sink has no client")
	// ErrSubmissionNotFound is returned when an audit record does not exist.
	ErrSubmissionNotFound = errors.New("leads: submission not found")
)
