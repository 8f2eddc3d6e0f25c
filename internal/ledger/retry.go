package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"

	"kharcha/internal/core"
)

// RetryConfig bounds the retry loop around remote store calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
}

// IsTransient reports whether err is worth retrying: rate limiting, server
// errors and network timeouts. Anything else surfaces immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrStoreUnavailable) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable:
			return true
		}
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

// withRetry runs fn with exponential backoff until it succeeds, fails with a
// non-transient error, the attempt budget runs out, or ctx is done.
func withRetry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	delay := cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		slog.WarnContext(ctx, "Transient store error, retrying",
			"operation", op,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}
