package repo

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	sqliteBusyCode   = 5
	sqliteLockedCode = 6

	DefaultRetryAttempts = 5
	retryInitialBackoff  = 10 * time.Millisecond
	retryMaxBackoff      = 200 * time.Millisecond
)

// IsBusy reports whether err is a transient SQLite contention error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		code := coder.Code() & 0xff
		if code == sqliteBusyCode || code == sqliteLockedCode {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RetryHook is told about each retry before the backoff sleep.
type RetryHook func(attempt int, delay time.Duration, err error)

// RetryOnBusy runs op until it succeeds, fails with a non-busy error, or
// attempts run out. It returns the last error and the attempts made.
func RetryOnBusy(ctx context.Context, attempts int, hook RetryHook, op func() error) (int, error) {
	if attempts < 1 {
		attempts = DefaultRetryAttempts
	}
	delay := retryInitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return attempt, nil
		}
		if !IsBusy(lastErr) || attempt == attempts {
			return attempt, lastErr
		}
		if hook != nil {
			hook(attempt, delay, lastErr)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
		if next := delay * 2; next <= retryMaxBackoff {
			delay = next
		}
	}
	return attempts, lastErr
}
