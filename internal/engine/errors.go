package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"studioline/internal/repo"
)

// Error kinds reported by KindOf.
const (
	KindValidation   = "validation"
	KindPrecondition = "precondition"
	KindNotFound     = "not_found"
	KindStale        = "stale"
	KindTransient    = "transient"
	KindDelivery     = "delivery"
	KindUnrecorded   = "unrecorded"
	KindInternal     = "internal"
)

// ValidationError rejects malformed input before any store write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) ErrorKind() string { return KindValidation }

// PreconditionError means the record is in the wrong state for the operation.
type PreconditionError struct {
	Reason string
	State  string
}

func (e *PreconditionError) Error() string { return e.Reason }

func (e *PreconditionError) ErrorKind() string { return KindPrecondition }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) ErrorKind() string { return KindNotFound }

func (e *NotFoundError) Unwrap() error { return repo.ErrNotFound }

// StaleWriteError is returned when the caller's copy of a record is older
// than the stored one.
type StaleWriteError struct {
	Kind     string
	ID       string
	Expected int64
	Actual   int64
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("%s %s changed (version %d, have %d): %s", e.Kind, e.ID, e.Actual, e.Expected, repo.ErrStaleVersion)
}

func (e *StaleWriteError) ErrorKind() string { return KindStale }

func (e *StaleWriteError) Unwrap() error { return repo.ErrStaleVersion }

// TransientStoreError reports a store that stayed unavailable after retries.
// Nothing from the failed call was committed.
type TransientStoreError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: store unavailable after %d attempt(s), try again: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientStoreError) ErrorKind() string { return KindTransient }

func (e *TransientStoreError) Unwrap() error { return e.Err }

// DeliveryError wraps a notifier failure.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("deliver notice: %v", e.Err) }

func (e *DeliveryError) ErrorKind() string { return KindDelivery }

func (e *DeliveryError) Unwrap() error { return e.Err }

// UnrecordedNoticeError reports a notice that reached its recipients but
// is missing from the correspondence log. Sending it again would duplicate it.
type UnrecordedNoticeError struct {
	Recipients []string
	Err        error
}

func (e *UnrecordedNoticeError) Error() string {
	return fmt.Sprintf("notice delivered to %d recipients but not recorded: %v", len(e.Recipients), e.Err)
}

func (e *UnrecordedNoticeError) ErrorKind() string { return KindUnrecorded }

func (e *UnrecordedNoticeError) Unwrap() error { return e.Err }

// KindOf classifies err into one of the Kind constants.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	if errors.Is(err, repo.ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, repo.ErrStaleVersion) {
		return KindStale
	}
	return KindInternal
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func precondition(state, format string, args ...any) error {
	return &PreconditionError{State: state, Reason: fmt.Sprintf(format, args...)}
}

// storeErr converts repo sentinels into the taxonomy.
func storeErr(kind, id string, expected int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return &NotFoundError{Kind: kind, ID: id}
	case errors.Is(err, repo.ErrStaleVersion):
		return &StaleWriteError{Kind: kind, ID: id, Expected: expected}
	}
	return err
}

func checkVersion(kind, id string, expected, actual int64) error {
	if expected > 0 && expected != actual {
		return &StaleWriteError{Kind: kind, ID: id, Expected: expected, Actual: actual}
	}
	return nil
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if repo.IsBusy(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
