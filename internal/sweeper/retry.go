package sweeper

import (
	"context"
	"time"
)

// RetryPolicy governs how a sweep job run is retried. Only errors accepted by
// Retryable trigger another attempt; everything else fails the run at once.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

// Execute runs fn under the policy, sleeping Backoff between attempts. The
// context is honoured both inside fn and during the backoff sleep.
func (p RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts || p.Retryable == nil || !p.Retryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
}
