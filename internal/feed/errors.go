package feed

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across package boundaries.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
)

// ValidationError rejects malformed input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError wraps a remote fetch failure. Fetch failures are fatal to the
// whole pipeline run and are never retried by the core.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError wraps a durable-store failure. The batch is rolled back in
// full; callers must not assume partial application.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CacheError wraps a fast-store failure. Cache failures are best-effort: they
// are surfaced but must not abort an otherwise successful durable write.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
