package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ParsedEvent is a normalized VEVENT. Recurrences are not expanded yet.
type ParsedEvent struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID of an overridden instance
	Cancelled  bool
}

// ParseICS parses one feed body. Floating times and dates are read in loc.
// Malformed VEVENTs are skipped and reported through skipped.
func ParseICS(body []byte, loc *time.Location) (events []ParsedEvent, skipped []error, err error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse calendar: %w", err)
	}

	for _, component := range cal.Events() {
		event, perr := parseVEvent(component, loc)
		if perr != nil {
			skipped = append(skipped, perr)
			continue
		}
		events = append(events, event)
	}
	return events, skipped, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.UID = strings.TrimSpace(uid.Value)

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Cancelled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("event %s: missing DTSTART", out.UID)
	}
	start, allDay, err := parsePropertyTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		// Unknown TZID names are resolved through the calendar's VTIMEZONE
		// handling in the library.
		if start, err = ve.GetStartAt(); err != nil {
			return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
		}
	}
	out.Start, out.AllDay = start, allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := parsePropertyTime(dtEnd.Value, dtEnd.ICalParameters, loc)
		if err != nil {
			if end, err = ve.GetEndAt(); err != nil {
				return out, fmt.Errorf("event %s: DTEND: %w", out.UID, err)
			}
		}
		out.End = end
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}
	if out.End.Before(out.Start) {
		return out, fmt.Errorf("event %s: DTEND before DTSTART", out.UID)
	}

	if rrule := ve.GetProperty(ical.ComponentPropertyRrule); rrule != nil {
		out.RawRRule = strings.TrimSpace(rrule.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			if t, _, err := parsePropertyTime(part, p.ICalParameters, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, _, err := parsePropertyTime(rid.Value, rid.ICalParameters, loc); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

// parsePropertyTime reads a DATE or DATE-TIME value. UTC values end in Z, a
// TZID parameter names an IANA zone and anything else is floating in loc.
func parsePropertyTime(value string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	isDate := !strings.Contains(value, "T")
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.ParseInLocation("20060102", value[:min(len(value), 8)], loc)
		return t, true, err
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err
	}

	zone := loc
	if tzids := params["TZID"]; len(tzids) > 0 && tzids[0] != "" {
		loaded, err := time.LoadLocation(strings.Trim(tzids[0], `"`))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("unknown TZID %q: %w", tzids[0], err)
		}
		zone = loaded
	}
	t, err := time.ParseInLocation("20060102T150405", value, zone)
	return t, false, err
}
