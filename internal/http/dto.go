package http

import (
	"strings"
	"time"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/surface"
)

type windowDTO struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type styleDTO struct {
	BackgroundColor string   `json:"background_color"`
	BorderColor     string   `json:"border_color"`
	TextColor       string   `json:"text_color"`
	ClassNames      []string `json:"class_names,omitempty"`
}

type eventDTO struct {
	Key         string   `json:"key"`
	ID          string   `json:"id"`
	Origin      string   `json:"origin"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	AllDay      bool     `json:"all_day"`
	Visibility  string   `json:"visibility,omitempty"`
	Category    string   `json:"category,omitempty"`
	Style       styleDTO `json:"style"`
	Busy        bool     `json:"busy"`
	Editable    bool     `json:"editable"`
	Draggable   bool     `json:"draggable"`
	Column      int      `json:"column"`
	Columns     int      `json:"columns"`
}

type noticeDTO struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	EventKey string `json:"event_key,omitempty"`
	At       string `json:"at"`
}

type formDTO struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"all_day"`
	Visibility  string `json:"visibility"`
	Category    string `json:"category"`
	CanDelete   bool   `json:"can_delete"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

// parseWindow reads optional RFC3339 bounds. ok is false when a bound is
// present but unparseable or the window is inverted.
func parseWindow(start, end string) (application.Window, bool) {
	var window application.Window
	if strings.TrimSpace(start) != "" {
		if window.Start = parseTime(start); window.Start.IsZero() {
			return application.Window{}, false
		}
	}
	if strings.TrimSpace(end) != "" {
		if window.End = parseTime(end); window.End.IsZero() {
			return application.Window{}, false
		}
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
		return application.Window{}, false
	}
	return window, true
}

func toWindowDTO(window application.Window) windowDTO {
	return windowDTO{Start: formatTime(window.Start), End: formatTime(window.End)}
}

func toStyleDTO(style application.Style) styleDTO {
	return styleDTO{
		BackgroundColor: style.BackgroundColor,
		BorderColor:     style.BorderColor,
		TextColor:       style.TextColor,
		ClassNames:      append([]string(nil), style.ClassNames...),
	}
}

func toEventDTO(event surface.RenderedEvent) eventDTO {
	return eventDTO{
		Key:         event.Key,
		ID:          event.ID,
		Origin:      string(event.Origin),
		Title:       event.Title,
		Description: event.Description,
		Start:       formatTime(event.Start),
		End:         formatTime(event.End),
		AllDay:      event.AllDay,
		Visibility:  string(event.Visibility),
		Category:    event.Category,
		Style:       toStyleDTO(event.Style),
		Busy:        event.Busy,
		Editable:    event.Editable,
		Draggable:   event.Draggable,
		Column:      event.Column,
		Columns:     event.Columns,
	}
}

func toEventDTOs(events []surface.RenderedEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

func toNoticeDTO(notice surface.Notice) noticeDTO {
	return noticeDTO{
		Kind:     string(notice.Kind),
		Message:  notice.Message,
		EventKey: notice.EventKey,
		At:       formatTime(notice.At),
	}
}

func toNoticeDTOs(notices []surface.Notice) []noticeDTO {
	if len(notices) == 0 {
		return nil
	}
	out := make([]noticeDTO, 0, len(notices))
	for _, notice := range notices {
		out = append(out, toNoticeDTO(notice))
	}
	return out
}

func toFormDTO(form surface.EditForm) formDTO {
	return formDTO{
		Key:         form.Key,
		Title:       form.Title,
		Description: form.Description,
		Start:       formatTime(form.Start),
		End:         formatTime(form.End),
		AllDay:      form.AllDay,
		Visibility:  string(form.Visibility),
		Category:    form.Category,
		CanDelete:   form.CanDelete,
	}
}

// toPublicEventDTO renders a projection event. Public events are never
// editable, busy or draggable.
func toPublicEventDTO(event application.MergedEvent) eventDTO {
	start, end, allDay := event.Span()
	dto := eventDTO{
		Key:    event.Key(),
		ID:     event.ID(),
		Origin: string(event.Origin),
		Title:  event.Title(),
		Start:  formatTime(start),
		End:    formatTime(end),
		AllDay: allDay,
		Style:  toStyleDTO(event.Style),
	}
	if event.Local != nil {
		dto.Description = event.Local.Description
		dto.Category = event.Local.Category
	}
	return dto
}
