package odoo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when authentication parses cleanly but carries no uid.
	ErrInvalidCredentials = errors.New("odoo: authentication failed - invalid credentials")
	// ErrConfig is returned for unusable client configuration.
	ErrConfig = errors.New("odoo: invalid configuration")
)

// Error is a normalized CRM failure carrying a human-readable diagnostic.
type Error struct {
	Op     string
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("odoo %s (%s): %s", e.Op, e.Kind, e.Detail)
}

// Session is the result of a successful authenticate call.
type Session struct {
	UID       int64
	SessionID string
}

// Lead is the crm.lead record created for a contact form submission.
type Lead struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	EmailFrom   string `json:"email_from"`
	PartnerName string `json:"partner_name"`
	Function    string `json:"function"`
	Description string `json:"description"`
	Type        string `json:"type"`
	TeamID      int    `json:"team_id,omitempty"`
	// UserID is always false so Odoo team rules pick the salesperson.
	UserID bool `json:"user_id"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type authParams struct {
	DB       string `json:"db"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

type callKWParams struct {
	Model  string         `json:"model"`
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	KWArgs map[string]any `json:"kwargs"`
}
