package reply

import (
	"context"
	"errors"
	"fmt"
)

const (
	// ErrorMarker prefixes every in-band failure text.
	ErrorMarker = "❌ Error calling Gemini API: "
	// NoContent is returned in place of a reply when the response has no text.
	NoContent = "⚠️ No content received from Gemini."
)

var (
	// ErrUpstream covers transport failures and non-2xx responses.
	ErrUpstream = errors.New("upstream request failed")
	// ErrTimeout is returned when the call or the wait for a worker exceeds the timeout.
	ErrTimeout = errors.New("upstream request timed out")
	// ErrNoContent means the response envelope carried no candidate text.
	ErrNoContent = errors.New("no content in response")
)

// Text renders a Generate result the way callers without error handling
// expect it: the reply, the NoContent marker, or ErrorMarker plus the cause.
func Text(reply string, err error) string {
	switch {
	case err == nil:
		return reply
	case errors.Is(err, ErrNoContent):
		return NoContent
	default:
		return ErrorMarker + err.Error()
	}
}

func classify(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var te interface{ Timeout() bool }

	return errors.As(err, &te) && te.Timeout()
}
