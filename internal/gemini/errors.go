package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Error is returned for responses outside the 2xx range.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s with status %s", e.Method, e.URL, e.Status)
}

// IsStatusErr reports whether err carries an upstream response with the given status code.
func IsStatusErr(err error, code int) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == code
}

// IsUnauthorizedErr reports whether the upstream rejected the API key.
func IsUnauthorizedErr(err error) bool {
	return IsStatusErr(err, http.StatusUnauthorized) ||
		IsStatusErr(err, http.StatusForbidden)
}

// redactKey hides the key query parameter so URLs can be logged.
func redactKey(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	if q.Has(keyParam) {
		q.Set(keyParam, "REDACTED")
	}

	c := *u
	c.RawQuery = q.Encode()

	return c.String()
}

// redactURLError strips the key from *url.Error values produced by http.Client.
func redactURLError(err error, u *url.URL) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: redactKey(u), Err: ue.Err}
	}

	return err
}
