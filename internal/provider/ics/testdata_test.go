package ics

import "strings"

func calendar(events ...string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//feed//EN",
	}
	lines = append(lines, events...)
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

func vevent(props ...string) string {
	return strings.Join(append(append([]string{"BEGIN:VEVENT"}, props...), "END:VEVENT"), "\r\n")
}

var weeklySeries = calendar(
	vevent(
		"UID:service@church",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Sunday service",
		"DTSTART:20240303T100000Z",
		"DTEND:20240303T113000Z",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"EXDATE:20240317T100000Z",
	),
	vevent(
		"UID:service@church",
		"DTSTAMP:20240101T000000Z",
		"RECURRENCE-ID:20240310T100000Z",
		"SUMMARY:Sunday service (moved)",
		"DTSTART:20240310T120000Z",
		"DTEND:20240310T133000Z",
	),
	vevent(
		"UID:retreat@church",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Retreat",
		"DTSTART;VALUE=DATE:20240315",
		"DTEND;VALUE=DATE:20240317",
	),
)
