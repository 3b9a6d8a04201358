package tts

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxErrorBody caps how much of an error response is read into APIError.
const maxErrorBody = 64 << 10

// retrier performs HTTP requests with linear backoff on transport errors,
// 429 and 5xx responses. Shared by the REST providers.
type retrier struct {
	client     *http.Client
	maxRetries int
	delay      time.Duration
	logger     *slog.Logger
	provider   string
	parseError func(*http.Response) error
}

// do sends req, rebuilding its body from body on every retry.
func (r *retrier) do(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, WrapError(r.provider, ctx.Err())
			case <-time.After(r.delay * time.Duration(attempt)):
			}
			if body != nil {
				req.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, WrapError(r.provider, ctx.Err())
			}
			lastErr = WrapError(r.provider, err)
			r.logger.Warn("request failed",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = r.parseError(resp)
			resp.Body.Close()
			r.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
