package ics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/logging"
)

// Config configures a Provider.
type Config struct {
	Sources []Source
	// Timeout bounds one FetchExternalEvents call across all feeds.
	Timeout time.Duration
	// PastDays and FutureDays bound recurrence expansion around now.
	PastDays   int
	FutureDays int
	// Location reads floating times and dates and is the zone of the
	// returned events.
	Location *time.Location
}

// Provider is the application.ExternalProvider over iCalendar feeds.
type Provider struct {
	config  Config
	fetcher *Fetcher
	now     func() time.Time
	logger  *slog.Logger
}

// NewProvider wires a provider. A nil fetcher uses http.DefaultClient and a nil
// clock uses time.Now.
func NewProvider(config Config, fetcher *Fetcher, now func() time.Time, logger *slog.Logger) *Provider {
	if config.Timeout <= 0 {
		config.Timeout = fetchTimeout
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{config: config, fetcher: fetcher, now: now, logger: logger}
}

// Sources returns the configured feeds.
func (p *Provider) Sources() []Source {
	return append([]Source(nil), p.config.Sources...)
}

type feedResult struct {
	source Source
	events []application.ExternalEvent
	err    error
}

// FetchExternalEvents fetches every feed concurrently. It never fails: a
// broken feed drops only its own events and is named in the returned Err.
func (p *Provider) FetchExternalEvents(ctx context.Context) application.ExternalFetch {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = p.logger
	}
	logger = logger.With("service", "ICSProvider", "operation", "FetchExternalEvents")

	if len(p.config.Sources) == 0 {
		return application.ExternalFetch{}
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	now := p.now()
	expand := ExpandConfig{
		Location:   p.config.Location,
		RangeStart: now.AddDate(0, 0, -p.config.PastDays),
		RangeEnd:   now.AddDate(0, 0, p.config.FutureDays),
	}

	results := make([]feedResult, len(p.config.Sources))
	var wg sync.WaitGroup
	for i, src := range p.config.Sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			events, err := p.fetchSource(ctx, logger, src, expand)
			results[i] = feedResult{source: src, events: events, err: err}
		}(i, src)
	}
	wg.Wait()

	var (
		out    application.ExternalFetch
		failed []string
		errs   []error
	)
	for _, result := range results {
		if result.err != nil {
			failed = append(failed, result.source.ID)
			errs = append(errs, fmt.Errorf("%s: %w", result.source.ID, result.err))
			logger.WarnContext(ctx, "ics feed unavailable",
				"source", result.source.ID,
				"url", redactURL(result.source.URL),
				"error", result.err)
			continue
		}
		out.Events = append(out.Events, result.events...)
	}
	if len(errs) > 0 {
		out.Err = fmt.Errorf("ics feeds unavailable (%s): %w", strings.Join(failed, ", "), errors.Join(errs...))
	}
	logger.DebugContext(ctx, "ics feeds fetched",
		"sources", len(p.config.Sources),
		"failed", len(failed),
		"events", len(out.Events))
	return out
}

func (p *Provider) fetchSource(ctx context.Context, logger *slog.Logger, src Source, cfg ExpandConfig) ([]application.ExternalEvent, error) {
	body, fromCache, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	parsed, skipped, err := ParseICS(body, p.config.Location)
	if err != nil {
		return nil, err
	}
	for _, perr := range skipped {
		logger.WarnContext(ctx, "ics vevent skipped", "source", src.ID, "url", redactURL(src.URL), "error", perr)
	}

	expanded, err := Expand(parsed, cfg)
	if err != nil {
		return nil, err
	}
	for _, uid := range expanded.Truncated {
		logger.WarnContext(ctx, "ics recurrence truncated", "source", src.ID, "uid", uid)
	}
	for _, uid := range expanded.Invalid {
		logger.WarnContext(ctx, "ics recurrence rule invalid", "source", src.ID, "uid", uid)
	}

	events := make([]application.ExternalEvent, 0, len(expanded.Occurrences))
	for _, occ := range expanded.Occurrences {
		events = append(events, application.ExternalEvent{
			ID:     occurrenceID(src, occ),
			Title:  occ.Summary,
			Start:  occ.Start,
			End:    occ.End,
			AllDay: occ.AllDay,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	logger.DebugContext(ctx, "ics feed parsed",
		"source", src.ID,
		"url", redactURL(src.URL),
		"from_cache", fromCache,
		"events", len(events))
	return events, nil
}

// occurrenceID is "source/uid", with "@instant" appended for recurrence
// instances.
func occurrenceID(src Source, occ Occurrence) string {
	id := src.ID + "/" + occ.UID
	if occ.Instance != nil {
		id += "@" + occ.Instance.UTC().Format(time.RFC3339)
	}
	return id
}
