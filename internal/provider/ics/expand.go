package ics

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location is the zone occurrences are converted to.
	Location *time.Location
	// RangeStart and RangeEnd bound the occurrences that are produced.
	RangeStart time.Time
	RangeEnd   time.Time
	// MaxOccurrencesPerEvent caps a single series. Zero uses 5000.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of a parsed event.
type Occurrence struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
	// Instance is the original start of a recurring instance; nil for
	// single events.
	Instance *time.Time
}

// ExpandResult wraps the expanded occurrences.
type ExpandResult struct {
	Occurrences []Occurrence
	// Truncated lists UIDs that hit the occurrence cap.
	Truncated []string
	// Invalid lists UIDs whose RRULE could not be parsed.
	Invalid []string
}

// Expand turns parsed events into occurrences overlapping the configured
// range. It applies RRULE, EXDATE and RECURRENCE-ID overrides and drops
// cancelled events and instances.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, fmt.Errorf("expand: range end %s is before start %s", cfg.RangeEnd, cfg.RangeStart)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	var (
		order     []string
		bases     = make(map[string]ParsedEvent)
		overrides = make(map[string][]ParsedEvent)
	)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		// A repeated UID without RECURRENCE-ID replaces the earlier copy.
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = ev
	}

	for _, uid := range order {
		ev := bases[uid]
		if ev.Cancelled {
			continue
		}
		if ev.RawRRule == "" {
			if overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				result.Occurrences = append(result.Occurrences, occurrence(ev, ev.Start, ev.End, nil, cfg.Location))
			}
			continue
		}

		occurrences, truncated, err := expandRecurring(ev, overrides[uid], cfg)
		if err != nil {
			result.Invalid = append(result.Invalid, uid)
			continue
		}
		if truncated {
			result.Truncated = append(result.Truncated, uid)
		}
		result.Occurrences = append(result.Occurrences, occurrences...)
	}
	return result, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool, error) {
	rule, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)
	// Instances that started before the range but still run into it count.
	rangeStart := cfg.RangeStart.Add(-duration).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	starts := set.Between(rangeStart, rangeEnd, true)
	truncated := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		truncated = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		instance := start
		end := start.Add(duration)
		if ev.AllDay {
			days := int(duration.Hours()/24 + 0.5)
			if days < 1 {
				days = 1
			}
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, days)
		}

		if override, ok := findOverride(overrides, instance); ok {
			if override.Cancelled {
				continue
			}
			if overlaps(override.Start, override.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, occurrence(override, override.Start, override.End, &instance, cfg.Location))
			}
			continue
		}
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, occurrence(ev, start, end, &instance, cfg.Location))
	}
	return out, truncated, nil
}

func findOverride(overrides []ParsedEvent, instance time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(instance) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func occurrence(ev ParsedEvent, start, end time.Time, instance *time.Time, loc *time.Location) Occurrence {
	occ := Occurrence{
		UID:     ev.UID,
		Summary: ev.Summary,
		Start:   start.In(loc),
		End:     end.In(loc),
		AllDay:  ev.AllDay,
	}
	if instance != nil {
		at := instance.UTC()
		occ.Instance = &at
	}
	return occ
}

// overlaps treats zero-length events at the range start as overlapping.
func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	if end.Before(rangeStart) {
		return false
	}
	return start.Before(rangeEnd)
}
