package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/persistence"
)

var (
	eventCounter    uint64
	externalCounter uint64
)

// referenceTime is a Sunday morning.
var referenceTime = time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Local events -----------------------------

// EventFixture represents a deterministic local event that can be materialised
// for application or persistence tests.
type EventFixture struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Visibility  application.Visibility
	Category    string
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour private event with optional overrides.
// Successive fixtures start one hour apart.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		ID:         fmt.Sprintf("evt-%03d", idx),
		Title:      fmt.Sprintf("Event %03d", idx),
		Start:      start,
		End:        start.Add(time.Hour),
		Visibility: application.VisibilityPrivate,
		CreatorID:  "pastor",
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the identifier.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

// WithEventTitle overrides the title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

// WithEventSpan overrides start and end.
func WithEventSpan(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventAllDay marks the event as all-day on the day of start.
func WithEventAllDay(day time.Time, days int) EventOption {
	return func(f *EventFixture) {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		f.Start = start
		f.End = start.AddDate(0, 0, days)
		f.AllDay = true
	}
}

// WithEventPublic makes the event visible on the public projection.
func WithEventPublic() EventOption {
	return func(f *EventFixture) { f.Visibility = application.VisibilityPublic }
}

// WithEventCategory sets the category.
func WithEventCategory(category string) EventOption {
	return func(f *EventFixture) { f.Category = category }
}

// WithEventDescription sets the description.
func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) { f.Description = description }
}

// Application converts the fixture into an application.CalendarEvent.
func (f EventFixture) Application() application.CalendarEvent {
	return application.CalendarEvent{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		AllDay:      f.AllDay,
		Visibility:  f.Visibility,
		Category:    f.Category,
		CreatorID:   f.CreatorID,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Draft converts the fixture into the draft that would create it.
func (f EventFixture) Draft() application.EventDraft {
	return application.EventDraft{
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		AllDay:      f.AllDay,
		Visibility:  f.Visibility,
		Category:    f.Category,
		CreatorID:   f.CreatorID,
	}
}

// Persistence converts the fixture into a persistence.Event.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		AllDay:      f.AllDay,
		Visibility:  string(f.Visibility),
		Category:    f.Category,
		CreatorID:   f.CreatorID,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ----------------------------- External events -----------------------------

// ExternalOption configures an external event fixture.
type ExternalOption func(*application.ExternalEvent)

// NewExternalEvent returns a thirty minute external event.
func NewExternalEvent(opts ...ExternalOption) application.ExternalEvent {
	idx := atomic.AddUint64(&externalCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour).Add(30 * time.Minute)
	event := application.ExternalEvent{
		ID:    fmt.Sprintf("google/ext-%03d", idx),
		Title: fmt.Sprintf("External %03d", idx),
		Start: start,
		End:   start.Add(30 * time.Minute),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithExternalID overrides the identifier.
func WithExternalID(id string) ExternalOption {
	return func(e *application.ExternalEvent) { e.ID = id }
}

// WithExternalSpan overrides start and end.
func WithExternalSpan(start, end time.Time) ExternalOption {
	return func(e *application.ExternalEvent) {
		e.Start = start
		e.End = end
	}
}
