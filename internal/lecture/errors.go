package lecture

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks a request rejected before any work, e.g. a blank topic.
var ErrInvalidRequest = errors.New("invalid lecture request: topic is required")

// RateLimitGuidance is the detail attached to rate-limited generation failures.
const RateLimitGuidance = "Gemini API quota exceeded. Try: 1) Wait a few minutes and retry, " +
	"2) Check your API key at https://aistudio.google.com, 3) Ensure you're using a valid free-tier key"

// ConfigurationError reports a missing credential or backend. No output exists when it is returned.
type ConfigurationError struct {
	Detail string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Detail, e.Err)
	}
	return "configuration: " + e.Detail
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Kind classifies a content generation failure.
type Kind int

const (
	KindUpstream Kind = iota
	KindRateLimited
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "upstream"
	}
}

// GenerationError aborts a run at the content stage.
type GenerationError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return e.Detail
	case KindInvalidResponse:
		if e.Err != nil {
			return fmt.Sprintf("invalid lecture content: %s: %v", e.Detail, e.Err)
		}
		return "invalid lecture content: " + e.Detail
	default:
		return "Gemini API error: " + e.Detail
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError wraps filesystem failures while allocating a run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("lecture storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// IsKind reports whether err is a GenerationError of kind k.
func IsKind(err error, k Kind) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Kind == k
}

// ErrorKind names the category of a Run error for transports and metrics.
func ErrorKind(err error) string {
	var (
		genErr     *GenerationError
		cfgErr     *ConfigurationError
		storageErr *StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.As(err, &genErr):
		return genErr.Kind.String()
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &storageErr):
		return "storage"
	}
	return "internal"
}
