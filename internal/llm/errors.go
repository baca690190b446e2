package llm

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned when a hosted backend is selected without
// an API key.
var ErrMissingCredential = errors.New("llm credential not configured")

// StatusError carries a non-2xx HTTP status returned by an upstream model API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm upstream http %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}
