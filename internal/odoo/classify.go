package odoo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind tags how a CRM call ended. Classify only yields the first three.
type Kind int

const (
	// KindOK means the body parsed and carried a result member.
	KindOK Kind = iota
	// KindMalformed covers HTML pages, non-JSON bodies and empty envelopes.
	KindMalformed
	// KindRPCError means the server answered with an explicit error object.
	KindRPCError
	// KindTransport means no response was read: refused, timed out, reset.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindMalformed:
		return "malformed"
	case KindRPCError:
		return "rpc_error"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

const (
	bodySnippetLen = 400
	dataSnippetLen = 300
)

// Result is the classified form of one RPC response.
type Result struct {
	Kind   Kind
	Status int
	// Value holds the raw result member when Kind is KindOK.
	Value json.RawMessage
	// Message and Data describe an RPC error; Data may be empty.
	Message string
	Data    string
	// Snippet is a bounded prefix of the raw body, kept for diagnostics.
	Snippet string
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Classify inspects a response body before any field access. HTML is
// detected first so login pages and proxy errors produce readable
// diagnostics instead of decode failures.
func Classify(status int, body []byte) Result {
	res := Result{Status: status, Snippet: truncate(string(body), bodySnippetLen)}

	trimmed := bytes.TrimSpace(body)
	if looksLikeHTML(trimmed) {
		res.Kind = KindMalformed
		return res
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		res.Kind = KindMalformed
		return res
	}

	if env.Error != nil {
		res.Kind = KindRPCError
		res.Message = env.Error.Message
		if res.Message == "" {
			res.Message = "Unknown error"
		}
		if data := bytes.TrimSpace(env.Error.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
			res.Data = truncate(string(data), dataSnippetLen)
		}
		return res
	}

	if len(env.Result) == 0 {
		res.Kind = KindMalformed
		return res
	}

	res.Kind = KindOK
	res.Value = env.Result
	return res
}

func looksLikeHTML(body []byte) bool {
	return bytes.HasPrefix(body, []byte("<")) || bytes.Contains(body, []byte("<!DOCTYPE"))
}

// Err converts a non-OK result into an *Error for the named operation.
func (r Result) Err(op, url, contentType string) error {
	switch r.Kind {
	case KindOK:
		return nil
	case KindRPCError:
		detail := r.Message
		if r.Data != "" {
			detail = fmt.Sprintf("%s %s", r.Message, r.Data)
		}
		return &Error{Op: op, Kind: r.Kind, Detail: detail}
	default:
		parts := []string{url, fmt.Sprintf("HTTP %d", r.Status)}
		if contentType != "" {
			parts = append(parts, "CT: "+contentType)
		}
		parts = append(parts, "Body: "+r.Snippet)
		return &Error{Op: op, Kind: r.Kind, Detail: strings.Join(parts, " | ")}
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
