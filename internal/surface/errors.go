package surface

import "errors"

var (
	// ErrNotDraggable is returned when a drag or resize starts on an event
	// the grid renders as fixed. No intent is produced.
	ErrNotDraggable = errors.New("surface: event is not draggable")
	// ErrViewNotFound is returned for unknown, unmounted or reaped views.
	ErrViewNotFound = errors.New("surface: view not found")
)
