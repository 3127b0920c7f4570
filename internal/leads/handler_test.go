package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestServeHTTP_Preflight(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)

	req := httptest.NewRequest(http.MethodOptions, "/contact", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
	assertCORS(t, w)
	if h.outboundCalls() != 0 {
		t.Errorf("preflight must not reach any sink")
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/contact", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, w.Code)
		}
		var body ResponseBody
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Error != "Method not allowed" {
			t.Errorf("%s: unexpected error %q", method, body.Error)
		}
		assertCORS(t, w)
	}
}

func TestServeHTTP_Submit(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)

	body := `{"name":"Ann","email":"ann@x.co","request_type":"demo","message":"Hi","cf-turnstile-response":"t1"}`
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
	req.RemoteAddr = "198.51.100.7:52100"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["success"] != true || resp["message"] != "Form submitted successfully" {
		t.Errorf("unexpected response %v", resp)
	}
	if _, ok := resp["error"]; ok {
		t.Errorf("success response must not carry an error")
	}
	if h.verifier.ip != "198.51.100.7" {
		t.Errorf("expected remote ip forwarded, got %q", h.verifier.ip)
	}
	assertCORS(t, w)
}

func TestServeHTTP_TokenAlias(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)

	body := `{"name":"Ann","email":"ann@x.co","request_type":"demo","message":"Hi","verification_token":"alias"}`
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
	req.Header.Set("CF-Connecting-IP", "192.0.2.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if h.verifier.token != "alias" || h.verifier.ip != "192.0.2.1" {
		t.Errorf("unexpected verifier input token=%q ip=%q", h.verifier.token, h.verifier.ip)
	}
}

func TestServeHTTP_ValidationError(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":"Ann"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var body ResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error != "Missing required fields" || body.Code != ReasonMissingFields {
		t.Errorf("unexpected body %+v", body)
	}
	assertCORS(t, w)
}

func TestServeHTTP_TotalDeliveryFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.crm.err = errors.New("crm down")
	h.notifier.err = errors.New("webhook down")
	handler := NewHandler(h.svc, h.repo, nil)

	body := `{"name":"Ann","email":"ann@x.co","request_type":"demo","message":"Hi","cf-turnstile-response":"t1"}`
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if strings.Contains(w.Body.String(), "crm down") {
		t.Errorf("diagnostic leaked without debug flag: %s", w.Body.String())
	}
	assertCORS(t, w)
}

func TestListSubmissions(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		rec := Record{ID: name, Submission: Submission{Name: name}, SubmittedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := h.repo.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/submissions?limit=2", nil)
	w := httptest.NewRecorder()
	handler.ListSubmissions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp ListSubmissionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 || resp.Limit != 2 {
		t.Fatalf("unexpected count/limit %d/%d", resp.Count, resp.Limit)
	}
	if resp.Submissions[0].ID != "new" || resp.Submissions[1].ID != "mid" {
		t.Errorf("expected newest first, got %s, %s", resp.Submissions[0].ID, resp.Submissions[1].ID)
	}
}

func TestGetSubmission(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil)
	r := chi.NewRouter()
	r.Get("/admin/submissions/{id}", handler.GetSubmission)

	const id = "7f1c2a9e-3b4d-4e5f-8a6b-1c2d3e4f5a6b"
	rec := Record{ID: id, Submission: Submission{Name: "Ann", Email: "ann@x.co"}, SubmittedAt: time.Now().UTC()}
	if err := h.repo.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	cases := []struct {
		path string
		want int
	}{
		{path: "/admin/submissions/" + id, want: http.StatusOK},
		{path: "/admin/submissions/0b0e9d2c-5f6a-4b7c-9d8e-0f1a2b3c4d5e", want: http.StatusNotFound},
		{path: "/admin/submissions/not-a-uuid", want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Errorf("%s: expected status %d, got %d", tc.path, tc.want, w.Code)
		}
		if tc.want != http.StatusOK {
			continue
		}
		var got Record
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.ID != id || got.Email != "ann@x.co" {
			t.Errorf("unexpected record %+v", got)
		}
	}
}

func TestListSubmissions_NoDatastore(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, nil, nil)

	w := httptest.NewRecorder()
	handler.ListSubmissions(w, httptest.NewRequest(http.MethodGet, "/admin/submissions", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestServeHTTP_ExternalCORSWritesNoHeaders(t *testing.T) {
	h := newHarness(t, nil)
	handler := NewHandler(h.svc, h.repo, nil).WithExternalCORS()

	req := httptest.NewRequest(http.MethodOptions, "/contact", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	for _, k := range []string{"Access-Control-Allow-Origin", "Access-Control-Allow-Methods"} {
		if got := w.Header().Get(k); got != "" {
			t.Errorf("header %s: expected none, got %q", k, got)
		}
	}
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("header %s: expected %q, got %q", k, v, got)
		}
	}
}
