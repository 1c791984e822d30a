package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries. StartsAfter and EndsBefore select events
// overlapping the window they describe.
type EventFilter struct {
	Visibility  *string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// EventRepository stores calendar events. Create assigns the id and the
// timestamps; both Create and Update return the stored row.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, id string, changes EventChanges) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}
