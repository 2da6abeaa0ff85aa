// Package util provides common utilities used throughout the application.
package util

import (
	"context"
	"fmt"
	"time"

	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// WithRetry runs fn with linear backoff (attempt seconds between tries),
// used where a generic Executor (internal/resilience) is overkill for a
// single call site, e.g. the archive uploader's S3 PUT.
func WithRetry[T any](ctx context.Context, maxRetries int, logPrefix string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		logging.Warnf("%s attempt %d failed: %v", logPrefix, attempt+1, err)
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", logPrefix, maxRetries, lastErr)
}
