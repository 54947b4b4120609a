package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/email-writer/internal/reply"
)

// ReplyToMessageRequest identifies the mailbox message to answer.
type ReplyToMessageRequest struct {
	MessageID string `json:"message_id" jsonschema:"Gmail message ID"`
	Tone      string `json:"tone,omitempty" jsonschema:"desired tone of the reply, e.g. friendly or formal"`
}

// ReplyToMessageResponse carries the reply and the message it answers.
type ReplyToMessageResponse struct {
	MessageID string `json:"message_id" jsonschema:"Gmail message ID"`
	Subject   string `json:"subject" jsonschema:"subject of the original message"`
	Reply     string `json:"reply" jsonschema:"the generated reply"`
}

// NewReplyToMessage creates the reply_to_message tool.
func NewReplyToMessage(gen generator, box messageSource) *ReplyToMessage {
	return &ReplyToMessage{
		gen: gen,
		box: box,
	}
}

// ReplyToMessage answers a message loaded from the mailbox.
type ReplyToMessage struct {
	gen generator
	box messageSource
}

// ReplyToMessage loads input.MessageID and generates a reply to its body.
func (t *ReplyToMessage) ReplyToMessage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReplyToMessageRequest,
) (*mcp.CallToolResult, ReplyToMessageResponse, error) {
	if input.MessageID == "" {
		return nil, ReplyToMessageResponse{}, fmt.Errorf("message_id is required")
	}

	msg, err := t.box.Message(ctx, input.MessageID)
	if err != nil {
		return nil, ReplyToMessageResponse{}, fmt.Errorf("get message %s failed: %w", input.MessageID, err)
	}

	text, err := generate(ctx, t.gen, reply.EmailRequest{
		EmailContent: msg.Body,
		Tone:         input.Tone,
	})
	if err != nil {
		return nil, ReplyToMessageResponse{}, err
	}

	return nil, ReplyToMessageResponse{
		MessageID: msg.ID,
		Subject:   msg.Subject,
		Reply:     text,
	}, nil
}
