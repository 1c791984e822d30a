package persistence

import "time"

// Event is a calendar entry stored in persistence. Start and End are wall-clock
// times in the store's configured location.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Visibility  string
	Category    string
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventChanges lists the columns an update touches. Nil fields keep their
// stored value.
type EventChanges struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
	Visibility  *string
	Category    *string
}
