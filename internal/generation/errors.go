package generation

import (
	"errors"
	"fmt"

	"github.com/ryhan5/aicademy/internal/inference"
	"github.com/ryhan5/aicademy/internal/normalize"
)

var (
	// ErrCourseNotFound is returned when the requested course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrQueueDisabled is returned by Enqueue when no dispatcher is configured.
	ErrQueueDisabled = errors.New("background generation queue is not configured")
)

// ValidationError reports bad request input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UpstreamError reports a failed generation. The record was moved to Error.
type UpstreamError struct {
	RecordID string
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// failureMessage is the text stored on the record and shown to clients.
func failureMessage(err error) string {
	var malformed *normalize.MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.Error()
	}
	if errors.Is(err, inference.ErrRateLimited) {
		return "LLM provider rate limit exceeded, try again later"
	}
	var statusErr *inference.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("LLM provider %s failed with status %d", statusErr.Provider, statusErr.StatusCode)
	}
	if errors.Is(err, inference.ErrEmptyResponse) {
		return "LLM provider returned an empty response"
	}
	return "generation failed: " + err.Error()
}
