package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRoutes is returned when the directions provider answers with an empty result set.
	ErrNoRoutes = errors.New("directions provider returned no routes")

	// ErrStaleGeneration marks results computed under an epoch that has since been superseded.
	ErrStaleGeneration = errors.New("result belongs to a superseded generation")

	ErrSessionNotFound = errors.New("draft session not found")

	ErrAssignmentNotFound = errors.New("assignment not found in draft")

	// ErrUnknownEmptyMilesKey protects the map shape: overrides can only target existing keys.
	ErrUnknownEmptyMilesKey = errors.New("unknown empty miles key")

	// ErrDraftInvalid blocks submission of a draft whose total could not be computed.
	ErrDraftInvalid = errors.New("draft has validation errors")
)

// ProviderError wraps any failure of the directions provider (network, non-2xx, empty result).
// It is recovered locally by falling back to a straight-line distance.
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("directions provider: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("directions provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MissingCoordinateError is scoped to a single leg whose endpoint lacks lat/lon.
// Endpoint is "from" or "to".
type MissingCoordinateError struct {
	Leg      string
	Endpoint string
}

func (e *MissingCoordinateError) Error() string {
	return fmt.Sprintf("leg %s: %s stop has no coordinates", e.Leg, e.Endpoint)
}

// ValidationError blocks total computation and invoice submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationErrors collects every failed check of one computation.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// CacheCorruptionError reports an unreadable persisted cache; the cache is discarded.
type CacheCorruptionError struct {
	Namespace string
	Err       error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("route cache %q is corrupt: %v", e.Namespace, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }
