// Package tool exposes reply generation as MCP tools.
package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/email-writer/internal/mailbox"
	"github.com/hal9000y/email-writer/internal/reply"
)

type generator interface {
	Generate(ctx context.Context, req reply.EmailRequest) (string, error)
}

type messageSource interface {
	Message(ctx context.Context, id string) (*mailbox.Message, error)
}

// NewServer creates an MCP server with the reply tools. reply_to_message is
// registered only when box is not nil.
func NewServer(gen generator, box messageSource) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "email-writer", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_reply",
		Description: "Generate a professional reply to the given email, optionally in a given tone",
	}, NewGenerateReply(gen).GenerateReply)

	if box != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "reply_to_message",
			Description: "Generate a professional reply to a Gmail message by its ID",
		}, NewReplyToMessage(gen, box).ReplyToMessage)
	}

	return server
}
