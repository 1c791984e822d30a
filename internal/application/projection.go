package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ical "github.com/arran4/golang-ical"
)

// PublicProjection is the unauthenticated, read-only view of public local
// events. It never consults the external provider.
type PublicProjection struct {
	engine *Engine
	name   string
	domain string
	now    func() time.Time
	logger *slog.Logger
}

// NewPublicProjection wires the projection. name titles the iCalendar feed and
// domain qualifies event UIDs in it.
func NewPublicProjection(engine *Engine, name, domain string, now func() time.Time, logger *slog.Logger) *PublicProjection {
	if now == nil {
		now = time.Now
	}
	if domain == "" {
		domain = "agenda.local"
	}
	return &PublicProjection{engine: engine, name: name, domain: domain, now: now, logger: defaultLogger(logger)}
}

// Events returns public local events in window. The result carries no
// mutation affordances: every style is marked not editable.
func (p *PublicProjection) Events(ctx context.Context, window Window) ([]MergedEvent, error) {
	if p == nil || p.engine == nil {
		return nil, fmt.Errorf("PublicProjection is nil")
	}
	events, err := p.engine.LoadPublic(ctx, window)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Style.Editable = false
	}
	serviceLogger(ctx, p.logger, "PublicProjection", "Events").
		With("result_count", len(events)).DebugContext(ctx, "public events listed")
	return events, nil
}

// ICS serializes the public events in window as an iCalendar document.
func (p *PublicProjection) ICS(ctx context.Context, window Window) (string, error) {
	events, err := p.Events(ctx, window)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//church-agenda//public calendar//EN")
	if p.name != "" {
		cal.SetXWRCalName(p.name)
	}

	stamp := p.now().UTC()
	for _, event := range events {
		local := event.Local
		if local == nil {
			continue
		}
		vevent := cal.AddEvent(local.ID + "@" + p.domain)
		vevent.SetDtStampTime(stamp)
		if !local.CreatedAt.IsZero() {
			vevent.SetCreatedTime(local.CreatedAt)
		}
		if !local.UpdatedAt.IsZero() {
			vevent.SetModifiedAt(local.UpdatedAt)
		}
		vevent.SetSummary(local.Title)
		if local.Description != "" {
			vevent.SetDescription(local.Description)
		}
		if local.Category != "" {
			vevent.SetProperty(ical.ComponentPropertyCategories, local.Category)
		}
		if local.AllDay {
			vevent.SetAllDayStartAt(local.Start)
			vevent.SetAllDayEndAt(local.End)
		} else {
			vevent.SetStartAt(local.Start)
			vevent.SetEndAt(local.End)
		}
	}

	return cal.Serialize(), nil
}
