package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/logging"
)

// Selection is an empty-space range picked on the grid.
type Selection struct {
	Start time.Time
	End   time.Time
}

// EventDetails are the form fields entered for a new event.
type EventDetails struct {
	Title       string
	Description string
	Visibility  application.Visibility
	Category    string
}

// EditForm is the editor opened for a local event, pre-filled from it.
type EditForm struct {
	Key         string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Visibility  application.Visibility
	Category    string
	CanDelete   bool
}

// Activation is the outcome of clicking an event: an editor for local
// events, a notice for external ones.
type Activation struct {
	Form   *EditForm
	Notice *Notice
}

// View is one mounted calendar screen. It owns the timeline for its lifetime;
// gestures on it become mutation intents.
type View struct {
	id          string
	actor       application.Principal
	coordinator *application.Coordinator
	timeline    *application.Timeline
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	notices  []Notice
	lastUsed time.Time
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Actor returns the principal the view was mounted for.
func (v *View) Actor() application.Principal { return v.actor }

// Window returns the visible range.
func (v *View) Window() application.Window { return v.timeline.Window() }

// Events renders the current collection ordered by start.
func (v *View) Events() []RenderedEvent {
	v.touch()
	return render(v.timeline)
}

// Notices drains the pending notices.
func (v *View) Notices() []Notice {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.notices
	v.notices = nil
	return out
}

// SelectRange creates an event covering the selection. The event is all-day
// when the selection spans whole days.
func (v *View) SelectRange(ctx context.Context, selection Selection, details EventDetails) (RenderedEvent, error) {
	v.touch()
	// whole days are judged on the calendar's wall clock, not the client's offset
	loc := v.coordinator.Location()
	start, end := selection.Start, selection.End
	if !start.IsZero() {
		start = start.In(loc)
	}
	if !end.IsZero() {
		end = end.In(loc)
	}
	draft := application.EventDraft{
		Title:       details.Title,
		Description: details.Description,
		Start:       start,
		End:         end,
		AllDay:      application.SpansWholeDays(start, end),
		Visibility:  details.Visibility,
		Category:    details.Category,
		CreatorID:   v.actor.UserID,
	}
	created, err := v.coordinator.Apply(ctx, v.timeline, application.CreateIntent(draft))
	if err != nil {
		return RenderedEvent{}, v.failed(ctx, "SelectRange", "", err)
	}
	return v.rendered(created), nil
}

// Activate opens the editor for a local event. External events open nothing
// and raise a read-only notice instead.
func (v *View) Activate(ctx context.Context, key string) (Activation, error) {
	v.touch()
	event, ok := v.timeline.Find(key)
	if !ok {
		return Activation{}, fmt.Errorf("event %q: %w", key, application.ErrNotFound)
	}
	if event.Origin != application.OriginLocal || event.Local == nil {
		notice := v.notify(NoticeReadOnly, key, fmt.Sprintf("%q comes from an external calendar and is read-only", event.Title()))
		v.loggerFor(ctx, "Activate").DebugContext(ctx, "read-only event activated", "event_key", key)
		return Activation{Notice: &notice}, nil
	}
	if v.timeline.Busy(key) {
		return Activation{}, application.ErrMutationInFlight
	}

	local := event.Local
	return Activation{Form: &EditForm{
		Key:         key,
		Title:       local.Title,
		Description: local.Description,
		Start:       local.Start,
		End:         local.End,
		AllDay:      local.AllDay,
		Visibility:  local.Visibility,
		Category:    local.Category,
		CanDelete:   true,
	}}, nil
}

// SubmitEdit saves an edit form. Only fields that differ from the current
// event are sent.
func (v *View) SubmitEdit(ctx context.Context, key string, form EditForm) (RenderedEvent, error) {
	v.touch()
	event, ok := v.timeline.Find(key)
	if !ok {
		return RenderedEvent{}, fmt.Errorf("event %q: %w", key, application.ErrNotFound)
	}
	var current application.CalendarEvent
	if event.Local != nil {
		current = *event.Local
	}

	updated, err := v.coordinator.Apply(ctx, v.timeline, application.UpdateIntent(event, diff(current, form)))
	if err != nil {
		return RenderedEvent{}, v.failed(ctx, "SubmitEdit", key, err)
	}
	return v.rendered(updated), nil
}

// Delete removes a local event. It is the delete action of the edit form.
func (v *View) Delete(ctx context.Context, key string) error {
	v.touch()
	event, ok := v.timeline.Find(key)
	if !ok {
		return fmt.Errorf("event %q: %w", key, application.ErrNotFound)
	}
	if _, err := v.coordinator.Apply(ctx, v.timeline, application.DeleteIntent(event)); err != nil {
		return v.failed(ctx, "Delete", key, err)
	}
	return nil
}

// Change reschedules an event after a drag or resize. External events are not
// draggable and never produce an intent. When the change fails the element
// snaps back and the original event is returned with the error.
func (v *View) Change(ctx context.Context, key string, start, end time.Time, allDay bool) (RenderedEvent, error) {
	v.touch()
	event, ok := v.timeline.Find(key)
	if !ok {
		return RenderedEvent{}, fmt.Errorf("event %q: %w", key, application.ErrNotFound)
	}
	original := renderOne(event, v.timeline.Busy(key))
	if event.Origin != application.OriginLocal {
		return original, ErrNotDraggable
	}

	revert := func() {
		v.notify(NoticeReverted, key, fmt.Sprintf("%q was moved back to its original time", original.Title))
	}
	changed, err := v.coordinator.Apply(ctx, v.timeline, application.RescheduleIntent(event, start, end, allDay, revert))
	if err != nil {
		return original, v.failed(ctx, "Change", key, err)
	}
	return v.rendered(changed), nil
}

// Reload refetches both sources and replaces the collection.
func (v *View) Reload(ctx context.Context) ([]RenderedEvent, error) {
	v.touch()
	result, err := v.coordinator.Reload(ctx, v.timeline)
	if err != nil {
		return nil, err
	}
	v.warn(result.Warnings)
	return render(v.timeline), nil
}

func (v *View) rendered(event application.MergedEvent) RenderedEvent {
	return renderOne(event, v.timeline.Busy(event.Key()))
}

func (v *View) failed(ctx context.Context, operation, key string, err error) error {
	if errors.Is(err, application.ErrPersistence) {
		v.notify(NoticeMutationFailed, key, "the change could not be saved and was undone")
	}
	v.loggerFor(ctx, operation).DebugContext(ctx, "gesture not applied", "event_key", key, "error", err, "error_kind", application.ErrorKind(err))
	return err
}

func (v *View) warn(warnings []application.Warning) {
	for _, warning := range warnings {
		if warning.Kind == application.WarningExternalUnavailable {
			v.notify(NoticeExternalUnavailable, "", "external events unavailable")
		}
	}
}

func (v *View) notify(kind NoticeKind, key, message string) Notice {
	notice := Notice{Kind: kind, Message: message, EventKey: key, At: v.now()}
	v.mu.Lock()
	v.notices = append(v.notices, notice)
	v.mu.Unlock()
	return notice
}

func (v *View) touch() {
	v.mu.Lock()
	v.lastUsed = v.now()
	v.mu.Unlock()
}

func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

func (v *View) loggerFor(ctx context.Context, operation string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = v.logger
	}
	return logger.With("component", "surface", "operation", operation, "view_id", v.id)
}

func diff(current application.CalendarEvent, form EditForm) application.EventPatch {
	var patch application.EventPatch
	if title := strings.TrimSpace(form.Title); title != current.Title {
		patch.Title = &title
	}
	if form.Description != current.Description {
		description := form.Description
		patch.Description = &description
	}
	if !form.Start.Equal(current.Start) {
		start := form.Start
		patch.Start = &start
	}
	if !form.End.Equal(current.End) {
		end := form.End
		patch.End = &end
	}
	if form.AllDay != current.AllDay {
		allDay := form.AllDay
		patch.AllDay = &allDay
	}
	if form.Visibility != current.Visibility {
		visibility := form.Visibility
		patch.Visibility = &visibility
	}
	if category := strings.TrimSpace(form.Category); category != current.Category {
		patch.Category = &category
	}
	return patch
}
