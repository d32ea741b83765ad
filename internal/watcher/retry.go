package watcher

import (
	"context"
	"time"
)

// withRetry calls fn until it succeeds, maxRetries is exhausted, ctx is done
// or permanent reports the error as not worth retrying. The delay doubles
// after every attempt up to maxDelay; a maxDelay of zero leaves it uncapped.
func withRetry(ctx context.Context, maxRetries int, baseDelay, maxDelay time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || ctx.Err() != nil || (permanent != nil && permanent(err)) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}
}
