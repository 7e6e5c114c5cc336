package storage

import (
	"errors"
	"fmt"

	"github.com/dupescan/dupescan/internal/types"
)

var (
	// ErrNotFound is returned when an operation references a pair or item
	// that has no row. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation is returned when a write references a
	// non-live item. Never retried.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrTransient wraps retryable storage failures (busy database,
	// I/O hiccups). The store boundary retries these with backoff.
	ErrTransient = errors.New("transient storage error")

	// ErrIntegrityAnomaly indicates the orphan sweep removed relations
	// whose endpoints were not live. A non-zero sweep means some path
	// bypassed the atomic delete cascade; it is surfaced, never silently
	// absorbed.
	ErrIntegrityAnomaly = errors.New("integrity anomaly")
)

// EntryError reports a single failed entry in a batch write. The batch as a
// whole may still succeed for the remaining entries; callers are told
// exactly which entries failed and why.
type EntryError struct {
	Pair types.Pair
	Err  error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("relation %s: %v", e.Pair, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}
