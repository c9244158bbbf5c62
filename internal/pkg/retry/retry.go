package retry

import (
	"context"
	"fmt"
	"time"
)

// Do calls fn up to attempts times, sleeping delay between attempts. It stops
// early when fn succeeds or ctx is done. The last error is returned wrapped
// with the attempt count.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
