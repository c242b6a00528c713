package inference

import (
	"context"
	"time"

	"github.com/avast/retry-go"

	"github.com/ryhan5/aicademy/internal/logger"
)

type retryingGateway struct {
	next     Gateway
	attempts uint
	delay    time.Duration
	logger   *logger.Logger
}

// WithRetry wraps next so rate limits and transient failures are retried up to
// attempts more times, waiting n*delay before the n-th retry. Other errors
// are returned immediately.
func WithRetry(next Gateway, attempts uint, delay time.Duration, log *logger.Logger) Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &retryingGateway{
		next:     next,
		attempts: attempts,
		delay:    delay,
		logger:   log,
	}
}

func (g *retryingGateway) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			out, err := g.next.Generate(ctx, prompt)
			if err != nil {
				if !IsRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			text = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts+1),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * g.delay
		}),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("retrying llm request", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}
