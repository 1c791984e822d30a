package application

import (
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 200

// NormalizeDraft trims text fields and applies defaults.
func NormalizeDraft(draft EventDraft) EventDraft {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Category = strings.TrimSpace(draft.Category)
	if draft.Visibility == "" {
		draft.Visibility = VisibilityPrivate
	}
	if draft.AllDay {
		draft.Start, draft.End = wholeDays(draft.Start, draft.End)
	}
	return draft
}

// ValidateDraft checks a draft against the event invariants.
func ValidateDraft(draft EventDraft) error {
	vErr := &ValidationError{}
	validateEventCore(draft.Title, draft.Start, draft.End, draft.Visibility, vErr)
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// ValidateEvent checks a full event, typically after a patch was applied.
func ValidateEvent(event CalendarEvent) error {
	vErr := &ValidationError{}
	validateEventCore(event.Title, event.Start, event.End, event.Visibility, vErr)
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func validateEventCore(title string, start, end time.Time, visibility Visibility, vErr *ValidationError) {
	title = strings.TrimSpace(title)
	if title == "" {
		vErr.add("title", "title is required")
	} else if utf8.RuneCountInString(title) > maxTitleLength {
		vErr.add("title", "title is too long")
	}

	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		vErr.add("time", "end must not be before start")
	}

	if !visibility.Valid() {
		vErr.add("visibility", "visibility must be public or private")
	}
}

// wholeDays snaps an all-day span to midnight boundaries in the span's own
// location. The end stays exclusive.
func wholeDays(start, end time.Time) (time.Time, time.Time) {
	if !start.IsZero() {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	}
	if !end.IsZero() {
		midnight := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
		if midnight.Before(end) {
			midnight = midnight.AddDate(0, 0, 1)
		}
		end = midnight
	}
	return start, end
}

// SpansWholeDays reports whether a selection starts and ends on midnight and
// covers at least one day.
func SpansWholeDays(start, end time.Time) bool {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return false
	}
	return isMidnight(start) && isMidnight(end)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
