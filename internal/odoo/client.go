// Package odoo creates CRM leads through Odoo's JSON-RPC web endpoints.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	authenticatePath = "/web/session/authenticate"
	createLeadPath   = "/web/dataset/call_kw/crm.lead/create"
	userAgent        = "Mozilla/5.0 ContactRelay/1.0"
	bypassHeader     = "X-CF-Worker-Bypass"
	maxBodyBytes     = 1 << 20
)

var tracer = otel.Tracer("contactrelay.internal.odoo")

// Config describes the Odoo instance and credentials.
type Config struct {
	BaseURL      string
	Database     string
	User         string
	Password     string
	BypassSecret string
	Timeout      time.Duration
}

// Client talks to one Odoo instance. It holds no session between calls.
type Client struct {
	baseURL  string
	database string
	user     string
	password string
	bypass   string
	http     *http.Client
	now      func() time.Time
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		database: cfg.Database,
		user:     cfg.User,
		password: cfg.Password,
		bypass:   cfg.BypassSecret,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}, nil
}

// BaseURL returns the configured instance URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Database returns the configured database name.
func (c *Client) Database() string { return c.database }

// User returns the configured login.
func (c *Client) User() string { return c.user }

// Authenticate opens a web session and returns the user id.
func (c *Client) Authenticate(ctx context.Context) (Session, error) {
	ctx, span := tracer.Start(ctx, "odoo.authenticate")
	defer span.End()

	url := c.baseURL + authenticatePath
	res, header, err := c.call(ctx, url, "", rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: authParams{
			DB:       c.database,
			Login:    c.user,
			Password: c.password,
		},
		ID: 1,
	})
	if err != nil {
		return Session{}, spanError(span, &Error{Op: "auth", Kind: KindTransport, Detail: err.Error()})
	}
	if err := res.Err("auth", url, header.Get("Content-Type")); err != nil {
		return Session{}, spanError(span, err)
	}

	var auth struct {
		UID json.RawMessage `json:"uid"`
	}
	if err := json.Unmarshal(res.Value, &auth); err != nil {
		return Session{}, spanError(span, ErrInvalidCredentials)
	}
	var uid int64
	if err := json.Unmarshal(auth.UID, &uid); err != nil || uid == 0 {
		return Session{}, spanError(span, ErrInvalidCredentials)
	}

	sess := Session{UID: uid, SessionID: sessionCookie(header)}
	span.SetAttributes(attribute.Int64("odoo.uid", uid))
	return sess, nil
}

// CreateLead authenticates and creates a crm.lead, returning its id.
// Every call pays a fresh authentication round trip.
func (c *Client) CreateLead(ctx context.Context, lead Lead) (int64, error) {
	ctx, span := tracer.Start(ctx, "odoo.create_lead")
	defer span.End()

	sess, err := c.Authenticate(ctx)
	if err != nil {
		return 0, spanError(span, err)
	}

	url := c.baseURL + createLeadPath
	res, header, err := c.call(ctx, url, sess.SessionID, rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: callKWParams{
			Model:  "crm.lead",
			Method: "create",
			Args:   []any{lead},
			KWArgs: map[string]any{},
		},
		ID: c.now().UnixMilli(),
	})
	if err != nil {
		return 0, spanError(span, &Error{Op: "create", Kind: KindTransport, Detail: err.Error()})
	}
	if err := res.Err("create", url, header.Get("Content-Type")); err != nil {
		return 0, spanError(span, err)
	}

	var id int64
	if err := json.Unmarshal(res.Value, &id); err != nil {
		return 0, spanError(span, &Error{
			Op:     "create",
			Kind:   KindMalformed,
			Detail: fmt.Sprintf("%s | unexpected result: %s", url, truncate(string(res.Value), bodySnippetLen)),
		})
	}
	span.SetAttributes(attribute.Int64("odoo.lead_id", id))
	return id, nil
}

// call posts one JSON-RPC envelope and classifies the answer. Transport
// failures come back as err; everything else is in the Result.
func (c *Client) call(ctx context.Context, url, sessionID string, payload rpcRequest) (Result, http.Header, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Result{}, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.bypass != "" {
		req.Header.Set(bypassHeader, c.bypass)
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, nil, fmt.Errorf("%s: request failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, nil, fmt.Errorf("%s: read response: %w", url, err)
	}
	return Classify(resp.StatusCode, body), resp.Header, nil
}

func sessionCookie(header http.Header) string {
	resp := http.Response{Header: header}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "session_id" {
			return cookie.Value
		}
	}
	return ""
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
