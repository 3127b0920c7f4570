package leads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/contact-relay/internal/odoo"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var requestTypeLabels = map[string]string{
	"demo":    "Demo/POC Request",
	"pricing": "Sales & Pricing",
	"general": "General Inquiry",
}

// RequestTypeLabel returns the display label for a request type tag.
// Unknown tags pass through unchanged.
func RequestTypeLabel(tag string) string {
	if label, ok := requestTypeLabels[tag]; ok {
		return label
	}
	return tag
}

// Submission is one contact form payload. It is built once per request and
// not modified afterwards.
type Submission struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Company           string `json:"company,omitempty"`
	Role              string `json:"role,omitempty"`
	RequestType       string `json:"request_type"`
	Message           string `json:"message"`
	VerificationToken string `json:"-"`
}

// wireSubmission accepts both the Turnstile widget's field name and a
// provider-neutral alias for the verification token.
type wireSubmission struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Company           string `json:"company"`
	Role              string `json:"role"`
	RequestType       string `json:"request_type"`
	Message           string `json:"message"`
	TurnstileResponse string `json:"cf-turnstile-response"`
	VerificationToken string `json:"verification_token"`
}

// ParseSubmission decodes a JSON request body. It does not validate.
func ParseSubmission(body []byte) (Submission, error) {
	var w wireSubmission
	if len(bytes.TrimSpace(body)) == 0 {
		return Submission{}, reject(ReasonInvalidBody, fmt.Errorf("empty body"))
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return Submission{}, reject(ReasonInvalidBody, err)
	}
	token := w.TurnstileResponse
	if token == "" {
		token = w.VerificationToken
	}
	return Submission{
		Name:              strings.TrimSpace(w.Name),
		Email:             strings.TrimSpace(w.Email),
		Company:           strings.TrimSpace(w.Company),
		Role:              strings.TrimSpace(w.Role),
		RequestType:       strings.TrimSpace(w.RequestType),
		Message:           w.Message,
		VerificationToken: strings.TrimSpace(token),
	}, nil
}

// Validate runs the input checks in fixed order: required fields, email
// shape, then token presence. The first failure wins.
func (s Submission) Validate() error {
	if s.Name == "" || s.Email == "" || s.RequestType == "" || strings.TrimSpace(s.Message) == "" {
		return reject(ReasonMissingFields, nil)
	}
	if !emailPattern.MatchString(s.Email) {
		return reject(ReasonInvalidEmail, nil)
	}
	if s.VerificationToken == "" {
		return reject(ReasonVerificationTokenMissing, nil)
	}
	return nil
}

// RequestLabel is the display label of the submission's request type.
func (s Submission) RequestLabel() string {
	return RequestTypeLabel(s.RequestType)
}

// ToLead builds the CRM lead. The subject is the company, or the contact's
// name when no company was given; message newlines become <br/> for Odoo's
// HTML description field.
func (s Submission) ToLead(teamID int) odoo.Lead {
	subject := s.Company
	if subject == "" {
		subject = s.Name
	}
	messageHTML := strings.ReplaceAll(s.Message, "\n", "<br/>")
	return odoo.Lead{
		Name:        subject,
		ContactName: s.Name,
		EmailFrom:   s.Email,
		PartnerName: s.Company,
		Function:    s.Role,
		Description: fmt.Sprintf("Subject: %s<br/><br/>Message:<br/>%s", s.RequestLabel(), messageHTML),
		Type:        "lead",
		TeamID:      teamID,
	}
}

// Record is one audit-log row: the submission plus server-assigned fields.
type Record struct {
	ID string `json:"id"`
	Submission
	RemoteIP    string    `json:"remote_ip,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
