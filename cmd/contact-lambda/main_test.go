package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/wolfman30/contact-relay/internal/leads"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

type recordingSubmitter struct {
	body     string
	remoteIP string
	resp     leads.Response
	panic    bool
}

func (s *recordingSubmitter) Handle(_ context.Context, body []byte, remoteIP string) leads.Response {
	if s.panic {
		panic("boom")
	}
	s.body = string(body)
	s.remoteIP = remoteIP
	return s.resp
}

func event(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "198.51.100.4",
			},
		},
	}
}

func decode(t *testing.T, resp events.APIGatewayV2HTTPResponse) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatalf("decode body %q: %v", resp.Body, err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	resp := handle(context.Background(), &recordingSubmitter{}, logging.New("error"), event(http.MethodGet, "/health", ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if decode(t, resp)["status"] != "ok" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestHandlePreflight(t *testing.T) {
	resp := handle(context.Background(), &recordingSubmitter{}, logging.New("error"), event(http.MethodOptions, "/", ""))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
	if resp.Body != "" {
		t.Fatalf("expected empty body, got %q", resp.Body)
	}
	if resp.Headers["access-control-allow-methods"] != "POST, OPTIONS" {
		t.Fatalf("missing CORS headers: %v", resp.Headers)
	}
}

func TestHandleRejectsOtherMethods(t *testing.T) {
	sub := &recordingSubmitter{}
	resp := handle(context.Background(), sub, logging.New("error"), event(http.MethodGet, "/", ""))
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
	if decode(t, resp)["error"] != "Method not allowed" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Headers["access-control-allow-origin"] != "*" {
		t.Fatalf("expected CORS headers on error responses")
	}
}

func TestHandleForwardsSubmission(t *testing.T) {
	sub := &recordingSubmitter{resp: leads.Response{
		Status: http.StatusOK,
		Body:   leads.ResponseBody{Success: true, Message: "Form submitted successfully"},
	}}
	evt := event(http.MethodPost, "/", base64.StdEncoding.EncodeToString([]byte(`{"name":"Ann"}`)))
	evt.IsBase64Encoded = true
	evt.Headers = map[string]string{"CF-Connecting-IP": "203.0.113.9"}

	resp := handle(context.Background(), sub, logging.New("error"), evt)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if sub.body != `{"name":"Ann"}` {
		t.Fatalf("expected decoded body, got %q", sub.body)
	}
	if sub.remoteIP != "203.0.113.9" {
		t.Fatalf("expected CF-Connecting-IP, got %q", sub.remoteIP)
	}
	if decode(t, resp)["success"] != true {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestHandleFallsBackToSourceIP(t *testing.T) {
	sub := &recordingSubmitter{resp: leads.Response{Status: http.StatusOK}}
	handle(context.Background(), sub, logging.New("error"), event(http.MethodPost, "/", "{}"))
	if sub.remoteIP != "198.51.100.4" {
		t.Fatalf("expected source ip, got %q", sub.remoteIP)
	}
}

func TestHandleInvalidBase64(t *testing.T) {
	evt := event(http.MethodPost, "/", "!!!")
	evt.IsBase64Encoded = true
	resp := handle(context.Background(), &recordingSubmitter{}, logging.New("error"), evt)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleRecoversPanic(t *testing.T) {
	resp := handle(context.Background(), &recordingSubmitter{panic: true}, logging.New("error"), event(http.MethodPost, "/", "{}"))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, resp.StatusCode)
	}
	if decode(t, resp)["error"] != "Internal server error" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}
