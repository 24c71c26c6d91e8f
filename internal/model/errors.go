package model

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateName indicates a join collided with a registered name.
	ErrDuplicateName = errors.New("name already registered")
	// ErrNotRegistered indicates the caller identity is not in the directory.
	ErrNotRegistered = errors.New("participant not registered")
	// ErrNotFound indicates a heartbeat target is absent.
	ErrNotFound = errors.New("participant not found")
	// ErrStoreUnavailable wraps any persistence failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError lists every input violation found, not just the first.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}
