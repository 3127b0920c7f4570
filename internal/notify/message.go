package notify

import (
	"context"
	"fmt"
	"unicode/utf8"
)

const (
	// FieldValueLimit is the size of one diagnostic chunk. Discord caps
	// embed field values at 1024 characters; chunks stay well under it.
	FieldValueLimit = 900
	// maxFieldValue is the hard per-field limit of the chat channels.
	maxFieldValue = 1024

	notProvided = "Not provided"
)

const (
	colorOK      = 0x00ff00
	colorWarning = 0xffaa00
)

// Notifier delivers a formatted submission to a human-visible channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Field is one labelled line in a notification.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the channel-neutral form of a submission notification.
type Message struct {
	// Title reads like "New Demo/POC Request".
	Title string
	// From is the submitter's display name.
	From string
	// Alert marks a submission whose CRM delivery failed.
	Alert  bool
	Fields []Field

	ReplyTo     string
	ReplyToName string
}

// Summary is the submission data a notification is built from.
type Summary struct {
	RequestLabel string
	Name         string
	Email        string
	Company      string
	Role         string
	Message      string

	// CRMFailed annotates the notification; CRMError is the diagnostic.
	CRMFailed bool
	CRMError  string
	// Debug is appended as a final field when non-empty.
	Debug string
}

// Prefix is the status marker shown before the title.
func (m Message) Prefix() string {
	if m.Alert {
		return "⚠️ [CRM Failed]"
	}
	return "✅"
}

// Color is the embed/attachment colour for the message.
func (m Message) Color() int {
	if m.Alert {
		return colorWarning
	}
	return colorOK
}

// Format builds the notification for a submission.
func Format(s Summary) Message {
	msg := Message{
		Title:       "New " + s.RequestLabel,
		From:        s.Name,
		Alert:       s.CRMFailed,
		ReplyTo:     s.Email,
		ReplyToName: s.Name,
		Fields: []Field{
			{Name: "Request Type", Value: s.RequestLabel, Inline: true},
			{Name: "Name", Value: s.Name, Inline: true},
			{Name: "Email", Value: s.Email, Inline: true},
			{Name: "Company", Value: orNotProvided(s.Company), Inline: true},
			{Name: "Role", Value: orNotProvided(s.Role), Inline: true},
			{Name: "Message", Value: s.Message},
		},
	}

	if s.CRMFailed && s.CRMError != "" {
		msg.Fields = append(msg.Fields, DiagnosticFields(s.CRMError, FieldValueLimit)...)
	}
	if s.Debug != "" {
		msg.Fields = append(msg.Fields, Field{Name: "🔧 Debug Info", Value: s.Debug})
	}
	return msg
}

// DiagnosticFields splits diag into fields of at most limit bytes. The first
// is labelled as the CRM error; the rest as continuations numbered from 2.
func DiagnosticFields(diag string, limit int) []Field {
	chunks := ChunkString(diag, limit)
	fields := make([]Field, 0, len(chunks))
	for i, chunk := range chunks {
		name := "⚠️ CRM Error"
		if i > 0 {
			name = fmt.Sprintf("⚠️ Error (cont'd %d)", i+1)
		}
		fields = append(fields, Field{Name: name, Value: chunk})
	}
	return fields
}

// ChunkString slices s into consecutive pieces of at most limit bytes,
// never splitting a multi-byte rune.
func ChunkString(s string, limit int) []string {
	if s == "" {
		return nil
	}
	if limit <= 0 {
		return []string{s}
	}
	var chunks []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			// limit is smaller than one rune; emit the rune alone
			_, size := utf8.DecodeRuneInString(s)
			cut = size
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return append(chunks, s)
}

// Truncate cuts s to at most limit bytes without splitting a rune.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	chunks := ChunkString(s, limit)
	return chunks[0]
}

func orNotProvided(v string) string {
	if v == "" {
		return notProvided
	}
	return v
}
