package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInvalidCurve = errors.New("invalid curve")

	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrCarrierNotFound = fmt.Errorf("%w: carrier", ErrNotFound)
	ErrHoleNotFound    = fmt.Errorf("%w: hole", ErrNotFound)

	// Persistence errors
	ErrPersistenceFailed     = errors.New("persistence write failed")
	ErrPersistenceCorruption = errors.New("persisted model corrupted")

	// Configuration errors
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Error constructors with context
func NewInvalidCurveError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCurve, reason)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewCorruptionError(carrierID CarrierID, cause error) error {
	return fmt.Errorf("%w: carrier %s: %v", ErrPersistenceCorruption, carrierID, cause)
}

// Error checking helpers
func IsInvalidCurve(err error) bool {
	return errors.Is(err, ErrInvalidCurve)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPersistenceCorruption(err error) bool {
	return errors.Is(err, ErrPersistenceCorruption)
}
