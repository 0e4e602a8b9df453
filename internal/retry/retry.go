// Package retry provides the bounded retry policy shared by worker launches
// and orphan cleanup.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy retries an operation a bounded number of times with a fixed delay
// between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. It returns the last error wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		logger.Warn("Operation failed", "op", op, "attempt", attempt, "max_attempts", attempts, "error", lastErr)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
