package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrCaseNotFound     = errors.New("case not found")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrAuth covers rejected credentials on the design API (401/403).
	ErrAuth = errors.New("authentication failed")

	// ErrTemporary marks transient failures that exhausted their retry budget.
	ErrTemporary = errors.New("temporary failure")

	// ErrRateLimited marks a model call still throttled after backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrModel marks a non-retryable model failure; the unit is skipped.
	ErrModel = errors.New("model error")

	// ErrPartialGeneration marks an unparseable model response for one unit.
	ErrPartialGeneration = errors.New("partial generation")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsUnitScoped reports whether an error is absorbed at unit scope by the
// orchestrator instead of failing the whole job.
func IsUnitScoped(err error) bool {
	return IsKind(err, ErrRateLimited) ||
		IsKind(err, ErrModel) ||
		IsKind(err, ErrPartialGeneration)
}
