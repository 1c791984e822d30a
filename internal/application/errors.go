package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested event does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrReadOnlySource is returned when a mutation targets an event the
	// service does not own. Reaching it means a surface let a gesture through.
	ErrReadOnlySource = errors.New("application: event source is read-only")
	// ErrPersistence is matched by every PersistenceError.
	ErrPersistence = errors.New("application: persistence failed")
	// ErrProviderUnavailable reports a failed or timed out external fetch.
	ErrProviderUnavailable = errors.New("application: external events unavailable")
	// ErrMutationInFlight is returned when the target already has a pending mutation.
	ErrMutationInFlight = errors.New("application: mutation already in flight")
	// ErrViewInvalidated is returned when a result arrives after its timeline was discarded.
	ErrViewInvalidated = errors.New("application: calendar view invalidated")
)

// ReadOnlySourceError names the event a rejected mutation targeted.
type ReadOnlySourceError struct {
	Kind     IntentKind
	Origin   Origin
	TargetID string
}

// Error implements the error interface.
func (e *ReadOnlySourceError) Error() string {
	return fmt.Sprintf("application: cannot %s %s event %q: source is read-only", e.Kind, e.Origin, e.TargetID)
}

// Is lets errors.Is match ErrReadOnlySource.
func (e *ReadOnlySourceError) Is(target error) bool {
	return target == ErrReadOnlySource
}

// PersistenceError wraps a failed event store call.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "application: " + e.Op + " failed"
	}
	return fmt.Sprintf("application: %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, &PersistenceError{Op: op, Err: err})
	}
	return &PersistenceError{Op: op, Err: err}
}
