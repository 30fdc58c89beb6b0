package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// retryPolicy retries transient HTTP failures (network errors, 5xx, 429)
// with quadratic backoff plus jitter.
type retryPolicy struct {
	attempts int           // retries after the first try
	base     time.Duration // backoff unit
}

var defaultRetry = retryPolicy{attempts: 3, base: time.Second}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * p.base
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

// do runs buildReq until it yields a 2xx response or retries run out. The
// caller owns the returned body.
func (p retryPolicy) do(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= p.attempts; attempt++ {
		if attempt > 0 {
			wait := p.backoff(attempt)
			logger.Warn("retrying model request", "attempt", attempt+1, "backoff", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		serr := &statusError{code: resp.StatusCode, body: string(body)}
		if !serr.retryable() {
			return nil, serr
		}
		lastErr = serr
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", p.attempts, lastErr)
}

// call retries fn while retryable reports its error as transient.
func (p retryPolicy) call(ctx context.Context, logger *slog.Logger, fn func() error, retryable func(error) bool) error {
	var err error
	for attempt := 0; attempt <= p.attempts; attempt++ {
		if attempt > 0 {
			wait := p.backoff(attempt)
			logger.Warn("retrying model request", "attempt", attempt+1, "backoff", wait, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err = fn(); err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
