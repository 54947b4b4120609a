package reply

import "strings"

const (
	instruction  = "Generate a professional email reply."
	tonePrefix   = "Tone: "
	originalHead = "Original Email:"
)

// EmailRequest is the body of a generate call.
type EmailRequest struct {
	EmailContent string `json:"emailContent"`
	Tone         string `json:"tone,omitempty"`
}

// BuildPrompt renders the instruction line, an optional tone line and the
// original email, in that order.
func BuildPrompt(req EmailRequest) string {
	var sb strings.Builder

	sb.WriteString(instruction)
	sb.WriteByte('\n')

	if req.Tone != "" {
		sb.WriteString(tonePrefix)
		sb.WriteString(req.Tone)
		sb.WriteByte('\n')
	}

	sb.WriteString(originalHead)
	sb.WriteByte('\n')
	sb.WriteString(req.EmailContent)

	return sb.String()
}
