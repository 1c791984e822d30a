package surface

import (
	"sort"
	"time"

	"github.com/example/church-agenda/internal/application"
)

// RenderedEvent is one element of the calendar grid.
type RenderedEvent struct {
	Key         string
	ID          string
	Origin      application.Origin
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Visibility  application.Visibility
	Category    string
	Style       application.Style
	// Busy is set while a mutation on the event is in flight; every control
	// on it is disabled for that time.
	Busy bool
	// Editable and Draggable are only true for local events that are not busy.
	Editable  bool
	Draggable bool
	// Column and Columns place timed events that overlap side by side.
	// All-day events always get column 0 of 1.
	Column  int
	Columns int
}

func render(tl *application.Timeline) []RenderedEvent {
	events := tl.Events()
	out := make([]RenderedEvent, 0, len(events))
	for _, event := range events {
		out = append(out, renderOne(event, tl.Busy(event.Key())))
	}
	// lay out by start instant, regardless of origin
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].Key < out[j].Key
		}
		return out[i].Start.Before(out[j].Start)
	})
	assignColumns(out)
	return out
}

func renderOne(event application.MergedEvent, busy bool) RenderedEvent {
	start, end, allDay := event.Span()
	rendered := RenderedEvent{
		Key:     event.Key(),
		ID:      event.ID(),
		Origin:  event.Origin,
		Title:   event.Title(),
		Start:   start,
		End:     end,
		AllDay:  allDay,
		Style:   event.Style,
		Busy:    busy,
		Columns: 1,
	}
	if event.Local != nil {
		rendered.Description = event.Local.Description
		rendered.Visibility = event.Local.Visibility
		rendered.Category = event.Local.Category
	}
	local := event.Origin == application.OriginLocal && event.Local != nil
	rendered.Editable = local && !busy
	rendered.Draggable = rendered.Editable
	rendered.Style.Editable = rendered.Editable
	return rendered
}
