package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

//go:generate mockgen -source=interface.go -destination=../mocks/inference/mock_gateway.go -package=mock_inference

// Gateway sends a prompt to an LLM provider and returns its raw text answer.
// The answer is untrusted and must be normalized before use.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultMaxRetryAttempts = 3
)

// ErrRateLimited matches provider errors caused by request quotas.
var ErrRateLimited = errors.New("llm provider rate limit exceeded")

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("llm provider returned an empty response")

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s response error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Is reports 429 responses as ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a rate limit or a transient failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
