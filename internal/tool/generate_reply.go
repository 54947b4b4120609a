package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/email-writer/internal/reply"
)

// GenerateReplyRequest carries the email to answer.
type GenerateReplyRequest struct {
	EmailContent string `json:"email_content" jsonschema:"the full text of the email to reply to"`
	Tone         string `json:"tone,omitempty" jsonschema:"desired tone of the reply, e.g. friendly or formal"`
}

// GenerateReplyResponse carries the generated reply.
type GenerateReplyResponse struct {
	Reply string `json:"reply" jsonschema:"the generated reply"`
}

// NewGenerateReply creates the generate_reply tool.
func NewGenerateReply(gen generator) *GenerateReply {
	return &GenerateReply{gen: gen}
}

// GenerateReply answers an email given inline.
type GenerateReply struct {
	gen generator
}

// GenerateReply generates a reply for input.
func (t *GenerateReply) GenerateReply(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateReplyRequest,
) (*mcp.CallToolResult, GenerateReplyResponse, error) {
	text, err := generate(ctx, t.gen, reply.EmailRequest{
		EmailContent: input.EmailContent,
		Tone:         input.Tone,
	})
	if err != nil {
		return nil, GenerateReplyResponse{}, err
	}

	return nil, GenerateReplyResponse{Reply: text}, nil
}

// generate maps ErrNoContent to the marker text; other failures become tool
// errors.
func generate(ctx context.Context, gen generator, req reply.EmailRequest) (string, error) {
	text, err := gen.Generate(ctx, req)
	if errors.Is(err, reply.ErrNoContent) {
		return reply.NoContent, nil
	}
	if err != nil {
		return "", fmt.Errorf("gen.Generate failed: %w", err)
	}

	return text, nil
}
