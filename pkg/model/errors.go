package model

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned for every decision attempt once the
	// handle failed to load. It wraps the original load failure.
	ErrModelUnavailable = errors.New("model: unavailable")

	// ErrUnknownKind is returned when an artifact names a kind nobody registered.
	ErrUnknownKind = errors.New("model: unknown artifact kind")

	// ErrFeatureMismatch is returned when an artifact was trained on a
	// different feature schema.
	ErrFeatureMismatch = errors.New("model: feature schema mismatch")
)

// LoadError reports a failure to load a model artifact.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("model: load failed: %v", e.Err)
	}
	return fmt.Sprintf("model: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err means no model could be used.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}

// unavailable wraps a captured load failure so that it matches both
// ErrModelUnavailable and the original cause.
func unavailable(cause error) error {
	if cause == nil {
		return ErrModelUnavailable
	}
	return fmt.Errorf("%w: %w", ErrModelUnavailable, cause)
}
