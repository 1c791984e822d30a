package surface

import "time"

// NoticeKind classifies a non-blocking message shown next to the grid.
type NoticeKind string

const (
	// NoticeReadOnly is raised when an external event is activated.
	NoticeReadOnly NoticeKind = "read_only"
	// NoticeMutationFailed is raised when a store call failed and the grid was restored.
	NoticeMutationFailed NoticeKind = "mutation_failed"
	// NoticeReverted is raised when a dragged or resized element snapped back.
	NoticeReverted NoticeKind = "reverted"
	// NoticeExternalUnavailable is raised when external events could not be loaded.
	NoticeExternalUnavailable NoticeKind = "external_unavailable"
)

// Notice is a message for the user that never blocks the calendar.
type Notice struct {
	Kind     NoticeKind
	Message  string
	EventKey string
	At       time.Time
}
