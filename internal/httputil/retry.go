package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// ErrRetriesExhausted is returned once every attempt has failed with a
// transient error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// DefaultRetryStatuses are the rate-limit and server-busy classes.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RetryOn     []int
	Logger      *slog.Logger
}

var DefaultRetry = RetryConfig{
	MaxAttempts: 4,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
}

func (c RetryConfig) retryable(status int) bool {
	statuses := c.RetryOn
	if statuses == nil {
		statuses = DefaultRetryStatuses
	}
	return slices.Contains(statuses, status)
}

// Do executes an HTTP request with exponential backoff retry.
// The buildReq function is called on each attempt to produce a fresh request
// (required because request bodies are consumed on each attempt).
//
// Transport errors and statuses listed in cfg.RetryOn are retried. Any other
// response, success or not, is returned to the caller untouched.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetry.MaxDelay
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		wait := delay
		resp, err := client.Do(req)
		if err == nil && !cfg.retryable(resp.StatusCode) {
			return resp, nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		} else {
			if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				wait = ra
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}

		if attempt == cfg.MaxAttempts {
			break
		}
		if wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}

		log.Warn("request attempt failed",
			"attempt", attempt, "max_attempts", cfg.MaxAttempts,
			"url", req.URL.Redacted(), "err", lastErr, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return nil, fmt.Errorf("%w: %d attempts, last error: %w", ErrRetriesExhausted, cfg.MaxAttempts, lastErr)
}

// retryAfter parses the delay-seconds form of the Retry-After header.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
