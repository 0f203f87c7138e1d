package authapi

import (
	"errors"
	"fmt"
)

// ErrNetwork marks transport-level failures: the request never produced a
// usable response. Callers surface a generic message for these instead of
// the raw error text.
var ErrNetwork = errors.New("authapi: network error")

// APIError is a business rejection reported by the auth API. The message is
// the server's own wording and is safe to show to the user verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authapi: %s (status %d)", e.Message, e.StatusCode)
}

// Message extracts a user-facing message from err. For business rejections
// the server's message is returned verbatim; anything else maps to fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
