package xpub

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotRegistered is returned when no publisher serves a platform.
var ErrNotRegistered = errors.New("publisher not registered")

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures platform-specific validation issues.
type ValidationError struct {
	Platform Platform
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Platform, e.Reason)
}

// Invalid is shorthand for a *ValidationError with a formatted reason.
func Invalid(p Platform, format string, args ...any) error {
	return &ValidationError{Platform: p, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
