// Package poller waits for a content record to leave Generating.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ryhan5/aicademy/internal/record"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 10
)

// ErrTimedOut means the record was still generating after the last check.
// Callers should tell the user to check back later rather than report a failure.
var ErrTimedOut = errors.New("content is still generating, check back later")

// GenerationFailedError is returned with the record when it reached Error.
type GenerationFailedError struct {
	RecordID string
	Message  string
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation of record %s failed: %s", e.RecordID, e.Message)
}

// StatusChecker fetches the current record of a pair.
type StatusChecker interface {
	CheckStatus(ctx context.Context, courseID string, contentType record.ContentType) (*record.Record, error)
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// OnCheck, when set, is called after every status check.
	OnCheck func(attempt int, rec *record.Record)
}

type Poller struct {
	checker StatusChecker
}

func New(checker StatusChecker) *Poller {
	return &Poller{checker: checker}
}

// PollUntilReady checks immediately and then every Interval until the record
// is Ready with content, is Error, MaxAttempts checks were made, or ctx ends.
// Check errors such as a not-yet-created record count as unresolved attempts.
func (p *Poller) PollUntilReady(ctx context.Context, courseID string, contentType record.ContentType, opts Options) (*record.Record, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; ; attempt++ {
		rec, err := p.checker.CheckStatus(ctx, courseID, contentType)
		if opts.OnCheck != nil {
			opts.OnCheck(attempt, rec)
		}
		if err == nil {
			lastErr = nil
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case rec.Status == record.StatusReady && rec.HasContent():
			return rec, nil
		case rec.Status == record.StatusError:
			return rec, &GenerationFailedError{RecordID: rec.ID, Message: rec.Error}
		}

		if attempt >= opts.MaxAttempts {
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last error: %v)", ErrTimedOut, lastErr)
			}
			return nil, ErrTimedOut
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
