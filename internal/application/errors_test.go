package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestReadOnlySourceErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &ReadOnlySourceError{Kind: IntentDelete, Origin: OriginExternal, TargetID: "g1"})
	if !errors.Is(err, ErrReadOnlySource) {
		t.Fatalf("expected errors.Is to match ErrReadOnlySource")
	}
	var roErr *ReadOnlySourceError
	if !errors.As(err, &roErr) || roErr.TargetID != "g1" {
		t.Fatalf("expected errors.As to expose target, got %#v", roErr)
	}
}

func TestPersistenceErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := persistenceError("create event", cause)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect ErrNotFound")
	}

	notFound := persistenceError("update event", fmt.Errorf("row: %w", ErrNotFound))
	if !errors.Is(notFound, ErrNotFound) || !errors.Is(notFound, ErrPersistence) {
		t.Fatalf("expected not found persistence error to match both sentinels, got %v", notFound)
	}

	if persistenceError("noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}
