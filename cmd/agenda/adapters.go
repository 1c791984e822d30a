package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/config"
	"github.com/example/church-agenda/internal/persistence"
	"github.com/example/church-agenda/internal/provider/ics"
)

// eventStoreAdapter exposes a persistence.EventRepository as the
// application's event store.
type eventStoreAdapter struct {
	repo persistence.EventRepository
}

func newEventStoreAdapter(repo persistence.EventRepository) *eventStoreAdapter {
	return &eventStoreAdapter{repo: repo}
}

func (a *eventStoreAdapter) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.CalendarEvent, error) {
	persistedFilter := persistence.EventFilter{
		StartsAfter: cloneTime(filter.StartsAfter),
		EndsBefore:  cloneTime(filter.EndsBefore),
	}
	if filter.Visibility != nil {
		visibility := string(*filter.Visibility)
		persistedFilter.Visibility = &visibility
	}

	models, err := a.repo.ListEvents(ctx, persistedFilter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	events := make([]application.CalendarEvent, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

func (a *eventStoreAdapter) CreateEvent(ctx context.Context, draft application.EventDraft) (application.CalendarEvent, error) {
	stored, err := a.repo.CreateEvent(ctx, persistence.Event{
		Title:       draft.Title,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		AllDay:      draft.AllDay,
		Visibility:  string(draft.Visibility),
		Category:    draft.Category,
		CreatorID:   draft.CreatorID,
	})
	if err != nil {
		return application.CalendarEvent{}, mapStoreError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStoreAdapter) UpdateEvent(ctx context.Context, id string, patch application.EventPatch) (application.CalendarEvent, error) {
	changes := persistence.EventChanges{
		Title:       cloneString(patch.Title),
		Description: cloneString(patch.Description),
		Start:       cloneTime(patch.Start),
		End:         cloneTime(patch.End),
		AllDay:      cloneBool(patch.AllDay),
		Category:    cloneString(patch.Category),
	}
	if patch.Visibility != nil {
		visibility := string(*patch.Visibility)
		changes.Visibility = &visibility
	}

	stored, err := a.repo.UpdateEvent(ctx, id, changes)
	if err != nil {
		return application.CalendarEvent{}, mapStoreError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventStoreAdapter) DeleteEvent(ctx context.Context, id string) error {
	return mapStoreError(a.repo.DeleteEvent(ctx, id))
}

// mapStoreError lets the application recognise missing rows; every other
// failure is passed through and wrapped as a persistence error upstream.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	}
	return err
}

func toApplicationEvent(model persistence.Event) application.CalendarEvent {
	return application.CalendarEvent{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Start:       model.Start,
		End:         model.End,
		AllDay:      model.AllDay,
		Visibility:  application.Visibility(model.Visibility),
		Category:    model.Category,
		CreatorID:   model.CreatorID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toICSSources(sources []config.ICSSource) []ics.Source {
	if len(sources) == 0 {
		return nil
	}
	out := make([]ics.Source, 0, len(sources))
	for _, source := range sources {
		out = append(out, ics.Source{ID: source.ID, URL: source.URL})
	}
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
