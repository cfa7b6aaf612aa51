package sunbird

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the LMS, carrying the machine message
// from the Sunbird error envelope when one was present.
type APIError struct {
	Route      string
	StatusCode int
	Status     string // params.status, e.g. "failed"
	Errmsg     string // params.errmsg, the human-readable upstream message
	Body       string // raw body, for logs when the envelope was absent
}

func (e *APIError) Error() string {
	if e.Errmsg != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Route, e.StatusCode, e.Errmsg)
	}
	return fmt.Sprintf("%s: http %d", e.Route, e.StatusCode)
}

// ErrorMessage extracts the most useful human-readable message from err:
// the structured upstream errmsg if present, otherwise the error text,
// otherwise the fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Errmsg != "" {
		return apiErr.Errmsg
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
