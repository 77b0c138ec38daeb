package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Interactive paths wrap these so callers can map them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrValidation   = errors.New("validation failed")
)

// notFound converts a record-not-found error into ErrNotFound and wraps
// anything else with what.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// denied turns a missing membership into ErrAccessDenied.
func denied(err error, planID, userID uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user %d is not a member of plan %d: %w", userID, planID, ErrAccessDenied)
	}
	return fmt.Errorf("load membership: %w", err)
}
