package stt

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// withRetry runs call until it succeeds, fails with a non-retryable error,
// or maxRetries extra attempts have been spent. Backoff grows linearly.
func withRetry(ctx context.Context, maxRetries int, delay time.Duration, logger *slog.Logger, call func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay * time.Duration(attempt)):
			}
		}

		err = call()
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return err
		}
		logger.Warn("retrying request",
			"attempt", attempt+1,
			"status", apiErr.StatusCode,
		)
	}
	return err
}
