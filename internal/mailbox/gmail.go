// Package mailbox reads messages that replies are generated for.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/email-writer/internal/format"
)

const gmailUserID = "me"

// ErrEmptyBody is returned when a message has neither a body nor a snippet.
var ErrEmptyBody = errors.New("message has no readable body")

// Message is a mailbox message reduced to what a reply needs.
type Message struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Date     string
	Body     string
}

type clientSource interface {
	Client(ctx context.Context) (*http.Client, error)
}

// Gmail reads messages through the Gmail API on behalf of the authorized user.
type Gmail struct {
	src  clientSource
	opts []option.ClientOption
}

// NewGmail creates a Gmail reader. opts are appended to the service options.
func NewGmail(src clientSource, opts ...option.ClientOption) *Gmail {
	return &Gmail{src: src, opts: opts}
}

// Message loads the message with id and renders its body as plain text.
func (m *Gmail) Message(ctx context.Context, id string) (*Message, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	msg, err := svc.Users.Messages.Get(gmailUserID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Get failed: %w", err)
	}

	out := FromGmail(msg)
	if out.Body == "" {
		return nil, fmt.Errorf("message %s: %w", id, ErrEmptyBody)
	}

	zerolog.Ctx(ctx).Debug().
		Str("message_id", id).
		Int("body_bytes", len(out.Body)).
		Msg("mailbox message loaded")

	return out, nil
}

func (m *Gmail) newSvc(ctx context.Context) (*gmail.Service, error) {
	clt, err := m.src.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("src.Client failed: %w", err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(clt)}, m.opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}

// FromGmail converts an API message. The body is the first text/plain part,
// else the first text/html part converted to text, else the snippet.
func FromGmail(msg *gmail.Message) *Message {
	out := &Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.Payload == nil {
		out.Body = strings.TrimSpace(msg.Snippet)
		return out
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.From = h.Value
		case "subject":
			out.Subject = h.Value
		case "date":
			out.Date = h.Value
		}
	}

	textBody, htmlBody := findBodies(msg.Payload)
	switch {
	case strings.TrimSpace(textBody) != "":
		out.Body = strings.TrimSpace(textBody)
	case htmlBody != "":
		out.Body = format.HTML2Text([]byte(htmlBody))
	}
	if out.Body == "" {
		out.Body = strings.TrimSpace(msg.Snippet)
	}

	return out
}

// findBodies walks the part tree depth-first and keeps the first body of
// each type. Attachments are skipped.
func findBodies(part *gmail.MessagePart) (textBody, htmlBody string) {
	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		switch part.MimeType {
		case "text/plain":
			textBody = decodeBase64URL(part.Body.Data)
		case "text/html":
			htmlBody = decodeBase64URL(part.Body.Data)
		}
	}

	for _, p := range part.Parts {
		if textBody != "" && htmlBody != "" {
			break
		}

		t, h := findBodies(p)
		if textBody == "" {
			textBody = t
		}
		if htmlBody == "" {
			htmlBody = h
		}
	}

	return textBody, htmlBody
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return data
		}
	}

	return string(decoded)
}
