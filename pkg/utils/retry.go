package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
)

var ErrMaxRetries = errors.New("max retries exceeded")

// RetryOptions controls WithRetry. Zero values fall back to a single attempt
// with a 500ms initial delay that doubles up to 30s.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable decides whether a failed attempt may be repeated. Nil retries every error.
	Retryable func(err error) bool
}

// WithRetry runs operation until it succeeds, returns a non-retryable error,
// exhausts MaxAttempts or ctx is done. It returns the number of attempts made.
func WithRetry(ctx context.Context, operation func(ctx context.Context) error, opts RetryOptions) (int, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	log := logging.NewLogger(ctx)
	delay := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		err := operation(ctx)
		if err == nil {
			return attempt, nil
		}

		if opts.Retryable != nil && !opts.Retryable(err) {
			return attempt, err
		}
		if opts.MaxAttempts == 1 {
			return attempt, err
		}
		if attempt >= opts.MaxAttempts {
			return attempt, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, err)
		}

		log.Warnf("retrying attempt=%d max_attempts=%d delay=%s error=%v", attempt, opts.MaxAttempts, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}
