package gemini

import "github.com/tidwall/gjson"

const roleUser = "user"

// textPath addresses the first text part of the first candidate.
const textPath = "candidates.0.content.parts.0.text"

// GenerateContentRequest is the generateContent request envelope.
// Reference: https://ai.google.dev/api/generate-content
type GenerateContentRequest struct {
	Contents []*Content `json:"contents"`
}

// Content is a single turn of the conversation.
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part holds inline text.
type Part struct {
	Text string `json:"text"`
}

// NewUserRequest wraps prompt into a single user turn.
func NewUserRequest(prompt string) *GenerateContentRequest {
	return &GenerateContentRequest{
		Contents: []*Content{
			{
				Role:  roleUser,
				Parts: []*Part{{Text: prompt}},
			},
		},
	}
}

// ExtractText returns candidates[0].content.parts[0].text from a response
// envelope. ok is false when any segment of the path is missing, the value is
// not a string, or body is not JSON at all.
func ExtractText(body []byte) (string, bool) {
	res := gjson.GetBytes(body, textPath)
	if !res.Exists() || res.Type != gjson.String {
		return "", false
	}

	return res.String(), true
}
