package embedding

import (
	"context"
	"errors"
	"time"

	"qwery/internal/domain"
)

// withRetry runs fn up to attempts times with exponential backoff.
// Invalid input is never retried; cancellation stops the loop.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	backoff := 500 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
