package notify

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender_NilWithoutHost(t *testing.T) {
	assert.Nil(t, NewSMTPSender(SMTPConfig{}, nil))

	var s *SMTPSender
	assert.Error(t, s.Send(context.Background(), EmailMessage{}))
}

func TestBuildMIME(t *testing.T) {
	raw, err := buildMIME(`"Contact Form" <noreply@example.com>`, EmailMessage{
		To:          "sales@example.com",
		ReplyTo:     "ann@x.co",
		ReplyToName: "Ann",
		Subject:     "New Demo/POC Request from Ann",
		Body:        "Name: Ann\n",
		HTML:        "<p>Ann</p>",
	})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, `"Ann" <ann@x.co>`, parsed.Header.Get("Reply-To"))
	assert.Equal(t, "<sales@example.com>", parsed.Header.Get("To"))

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "New Demo/POC Request from Ann", subject)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, part.Header.Get("Content-Type"))
	}
	assert.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, types)
}

func TestSMTPSender_DialFailure(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.invalid", FromEmail: "noreply@example.com"}, nil)
	s.dial = func(context.Context, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	err := s.Send(context.Background(), EmailMessage{To: "sales@example.com", Subject: "x", Body: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial failed")
}
