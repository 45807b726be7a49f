package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers attached to wrapped errors. Retry classification inspects
// the chain for these before falling back to message heuristics.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap tags err with marker and prefixes it with component/operation context.
// A nil marker defaults to ErrTransient; a nil err produces a standalone
// tagged error.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinDetail(component, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// IsFatal reports whether the error carries a marker that should never be
// retried. Validation and configuration failures describe broken inputs or
// broken wiring; retrying cannot change the outcome.
func IsFatal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration)
}

// IsRecoverable reports whether the error carries a marker describing a
// failure that may succeed on a later attempt.
func IsRecoverable(err error) bool {
	for _, marker := range []error{ErrTimeout, ErrTransient, ErrExternalTool, ErrNotFound} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func joinDetail(fields ...string) string {
	parts := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
