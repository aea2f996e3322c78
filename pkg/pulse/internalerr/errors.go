// Package internalerr holds the sentinel errors shared across pulse packages.
// Callers wrap them with fmt.Errorf("...: %w", err) and test with errors.Is.
package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidConfig marks a configuration error: a taxonomy or app config
	// that fails validation. Fatal before any account is processed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedPost marks a raw post the normalizer cannot repair.
	// The post is dropped from its account; the account still completes.
	ErrMalformedPost = errors.New("malformed post")

	ErrBudgetExceeded = errors.New("run budget exceeded")
	ErrRateLimited    = errors.New("rate limited")
)
