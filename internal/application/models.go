package application

import "time"

// Principal represents the authenticated actor invoking a service method.
type Principal struct {
	UserID string
}

// Visibility controls whether a local event reaches the public projection.
type Visibility string

const (
	// VisibilityPublic events are shown on the unauthenticated projection.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate events are shown to authenticated viewers only.
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether the visibility is one of the known values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Origin tags which source a merged event came from.
type Origin string

const (
	// OriginLocal marks events owned by the event store.
	OriginLocal Origin = "local"
	// OriginExternal marks events imported from an external calendar provider.
	OriginExternal Origin = "external"
)

// CalendarEvent is a locally owned, mutable calendar entry.
type CalendarEvent struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Visibility  Visibility
	Category    string
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExternalEvent is an event imported from an external provider. It is never
// written back.
type ExternalEvent struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	AllDay bool
}

// EventDraft captures the fields of an event that does not exist yet.
type EventDraft struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Visibility  Visibility
	Category    string
	CreatorID   string
}

// EventPatch lists the fields to change on an existing event. Nil fields are
// left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
	Visibility  *Visibility
	Category    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Start == nil && p.End == nil &&
		p.AllDay == nil && p.Visibility == nil && p.Category == nil
}

// ApplyTo returns a copy of event with the patch applied.
func (p EventPatch) ApplyTo(event CalendarEvent) CalendarEvent {
	if p.Title != nil {
		event.Title = *p.Title
	}
	if p.Description != nil {
		event.Description = *p.Description
	}
	if p.Start != nil {
		event.Start = *p.Start
	}
	if p.End != nil {
		event.End = *p.End
	}
	if p.AllDay != nil {
		event.AllDay = *p.AllDay
	}
	if p.Visibility != nil {
		event.Visibility = *p.Visibility
	}
	if p.Category != nil {
		event.Category = *p.Category
	}
	return event
}

// EventFilter narrows event store listings.
type EventFilter struct {
	Visibility  *Visibility
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// Window bounds a calendar load. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) filter() EventFilter {
	var filter EventFilter
	if !w.Start.IsZero() {
		start := w.Start
		filter.StartsAfter = &start
	}
	if !w.End.IsZero() {
		end := w.End
		filter.EndsBefore = &end
	}
	return filter
}

// Contains reports whether an event spanning [start, end] intersects the window.
func (w Window) Contains(start, end time.Time) bool {
	if !w.Start.IsZero() && end.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !start.Before(w.End) {
		return false
	}
	return true
}

// Style is the display treatment derived for a merged event.
type Style struct {
	BackgroundColor string
	BorderColor     string
	TextColor       string
	ClassNames      []string
	Editable        bool
}

// MergedEvent is the tagged union of a local or external event produced by a
// single merge. Exactly one of Local and External is set, matching Origin.
type MergedEvent struct {
	Origin   Origin
	Local    *CalendarEvent
	External *ExternalEvent
	Style    Style
}

// LocalMerged wraps a local event.
func LocalMerged(event CalendarEvent, style Style) MergedEvent {
	return MergedEvent{Origin: OriginLocal, Local: &event, Style: style}
}

// ExternalMerged wraps an external event.
func ExternalMerged(event ExternalEvent, style Style) MergedEvent {
	return MergedEvent{Origin: OriginExternal, External: &event, Style: style}
}

// Key identifies the event within a merge result. Local and external ids may
// collide, so the origin is part of the key.
func (m MergedEvent) Key() string {
	return EventKey(m.Origin, m.ID())
}

// EventKey builds the merge-scoped key for an origin and source id.
func EventKey(origin Origin, id string) string {
	return string(origin) + ":" + id
}

// ID returns the source-scoped identifier.
func (m MergedEvent) ID() string {
	switch m.Origin {
	case OriginLocal:
		if m.Local != nil {
			return m.Local.ID
		}
	case OriginExternal:
		if m.External != nil {
			return m.External.ID
		}
	}
	return ""
}

// Title returns the display title regardless of origin.
func (m MergedEvent) Title() string {
	switch m.Origin {
	case OriginLocal:
		if m.Local != nil {
			return m.Local.Title
		}
	case OriginExternal:
		if m.External != nil {
			return m.External.Title
		}
	}
	return ""
}

// Span returns the start, end and all-day flag regardless of origin.
func (m MergedEvent) Span() (time.Time, time.Time, bool) {
	switch m.Origin {
	case OriginLocal:
		if m.Local != nil {
			return m.Local.Start, m.Local.End, m.Local.AllDay
		}
	case OriginExternal:
		if m.External != nil {
			return m.External.Start, m.External.End, m.External.AllDay
		}
	}
	return time.Time{}, time.Time{}, false
}

// Clone returns a deep copy so snapshots never share pointers with live state.
func (m MergedEvent) Clone() MergedEvent {
	out := MergedEvent{Origin: m.Origin, Style: m.Style}
	if m.Local != nil {
		local := *m.Local
		out.Local = &local
	}
	if m.External != nil {
		external := *m.External
		out.External = &external
	}
	if m.Style.ClassNames != nil {
		out.Style.ClassNames = append([]string(nil), m.Style.ClassNames...)
	}
	return out
}

func cloneMerged(events []MergedEvent) []MergedEvent {
	if events == nil {
		return nil
	}
	out := make([]MergedEvent, len(events))
	for i, event := range events {
		out[i] = event.Clone()
	}
	return out
}

// IntentKind names the mutation a gesture asks for.
type IntentKind string

const (
	IntentCreate     IntentKind = "create"
	IntentUpdate     IntentKind = "update"
	IntentDelete     IntentKind = "delete"
	IntentReschedule IntentKind = "reschedule"
)

// Intent is the normalized mutation produced by a calendar gesture. Origin is
// always taken from the merged event the gesture started on.
type Intent struct {
	Kind     IntentKind
	Origin   Origin
	TargetID string
	Draft    EventDraft
	Patch    EventPatch
	Start    time.Time
	End      time.Time
	AllDay   bool
	// Revert snaps a dragged or resized element back to its original slot.
	// Only reschedule intents use it.
	Revert func()
}

// CreateIntent asks for a new local event.
func CreateIntent(draft EventDraft) Intent {
	return Intent{Kind: IntentCreate, Origin: OriginLocal, Draft: draft}
}

// UpdateIntent asks for a patch of the target event.
func UpdateIntent(target MergedEvent, patch EventPatch) Intent {
	return Intent{Kind: IntentUpdate, Origin: target.Origin, TargetID: target.ID(), Patch: patch}
}

// DeleteIntent asks for the removal of the target event.
func DeleteIntent(target MergedEvent) Intent {
	return Intent{Kind: IntentDelete, Origin: target.Origin, TargetID: target.ID()}
}

// RescheduleIntent asks to move or resize the target event.
func RescheduleIntent(target MergedEvent, start, end time.Time, allDay bool, revert func()) Intent {
	return Intent{
		Kind:     IntentReschedule,
		Origin:   target.Origin,
		TargetID: target.ID(),
		Start:    start,
		End:      end,
		AllDay:   allDay,
		Revert:   revert,
	}
}

// Key returns the merge-scoped key of the intent's target.
func (i Intent) Key() string {
	return EventKey(i.Origin, i.TargetID)
}

// Warning is a non-blocking condition surfaced alongside a calendar load.
type Warning struct {
	Kind    string
	Message string
	Err     error
}

const (
	// WarningExternalUnavailable is raised when external events could not be loaded.
	WarningExternalUnavailable = "external_unavailable"
)

// LoadResult is the outcome of a privileged calendar load.
type LoadResult struct {
	Events   []MergedEvent
	Warnings []Warning
}
