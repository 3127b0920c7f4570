package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/contact-relay/cmd/mainconfig"
	appconfig "github.com/wolfman30/contact-relay/internal/config"
	"github.com/wolfman30/contact-relay/internal/leads"
	"github.com/wolfman30/contact-relay/pkg/logging"
)

// submitter is the slice of leads.Service the adapter needs.
type submitter interface {
	Handle(ctx context.Context, body []byte, remoteIP string) leads.Response
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	relay, err := mainconfig.BuildRelay(context.Background(), cfg, logger, prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	defer relay.Close()

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, relay.Service, logger, evt), nil
	})
}

func handle(ctx context.Context, svc submitter, logger *logging.Logger, evt events.APIGatewayV2HTTPRequest) (resp events.APIGatewayV2HTTPResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("contact lambda panicked", "panic", r)
			resp = jsonResponse(http.StatusInternalServerError, leads.ResponseBody{Error: "Internal server error", Code: leads.ReasonUnhandled})
		}
	}()

	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" && method == http.MethodGet {
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
	}

	switch method {
	case http.MethodOptions:
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent, Headers: corsHeaders()}
	case http.MethodPost:
	default:
		reason := leads.ReasonMethodNotAllowed
		return jsonResponse(reason.Status(), leads.ResponseBody{Error: reason.Message(), Code: reason})
	}

	body, err := decodeBody(evt)
	if err != nil {
		reason := leads.ReasonInvalidBody
		return jsonResponse(reason.Status(), leads.ResponseBody{Error: reason.Message(), Code: reason})
	}

	remoteIP := headerValue(evt.Headers, "cf-connecting-ip")
	if remoteIP == "" {
		remoteIP = evt.RequestContext.HTTP.SourceIP
	}

	out := svc.Handle(ctx, body, remoteIP)
	return jsonResponse(out.Status, out.Body)
}

func jsonResponse(status int, body any) events.APIGatewayV2HTTPResponse {
	headers := corsHeaders()
	headers["content-type"] = "application/json"
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError, Headers: headers}
	}
	return events.APIGatewayV2HTTPResponse{StatusCode: status, Headers: headers, Body: string(data)}
}

func corsHeaders() map[string]string {
	return map[string]string{
		"access-control-allow-origin":  "*",
		"access-control-allow-methods": "POST, OPTIONS",
		"access-control-allow-headers": "Content-Type",
		"access-control-max-age":       "86400",
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
