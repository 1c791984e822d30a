package testfixtures

import (
	"context"
	"sort"
	"sync"

	"github.com/example/church-agenda/internal/application"
)

// EventStore is an in-memory application.EventStore that records every call.
type EventStore struct {
	mu     sync.Mutex
	events map[string]application.CalendarEvent
	ids    *IDGenerator
	clock  *Clock

	// Err, when set, fails every call.
	Err error
	// Gate, when set, blocks mutating calls until it receives or closes.
	Gate chan struct{}

	Creates int
	Updates int
	Deletes int
	Lists   int
}

// NewEventStore seeds a store with events. Created events get ids "evt-N".
func NewEventStore(clock *Clock, events ...application.CalendarEvent) *EventStore {
	if clock == nil {
		clock = NewClock(referenceTime)
	}
	store := &EventStore{
		events: make(map[string]application.CalendarEvent, len(events)),
		ids:    NewIDGenerator("evt"),
		clock:  clock,
	}
	for _, event := range events {
		store.events[event.ID] = event
	}
	return store
}

// Mutations returns the number of create, update and delete calls.
func (s *EventStore) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Creates + s.Updates + s.Deletes
}

// SetErr changes the injected failure.
func (s *EventStore) SetErr(err error) {
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

// Stored returns the event with id, if present.
func (s *EventStore) Stored(id string) (application.CalendarEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	return event, ok
}

func (s *EventStore) wait(ctx context.Context) error {
	if s.Gate == nil {
		return nil
	}
	select {
	case <-s.Gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListEvents implements application.EventStore.
func (s *EventStore) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lists++
	if s.Err != nil {
		return nil, s.Err
	}
	window := application.Window{}
	if filter.StartsAfter != nil {
		window.Start = *filter.StartsAfter
	}
	if filter.EndsBefore != nil {
		window.End = *filter.EndsBefore
	}
	out := make([]application.CalendarEvent, 0, len(s.events))
	for _, event := range s.events {
		if filter.Visibility != nil && event.Visibility != *filter.Visibility {
			continue
		}
		if !window.Contains(event.Start, event.End) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateEvent implements application.EventStore.
func (s *EventStore) CreateEvent(ctx context.Context, draft application.EventDraft) (application.CalendarEvent, error) {
	if err := s.wait(ctx); err != nil {
		return application.CalendarEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates++
	if s.Err != nil {
		return application.CalendarEvent{}, s.Err
	}
	now := s.clock.Now()
	event := application.CalendarEvent{
		ID:          s.ids.Next(),
		Title:       draft.Title,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		AllDay:      draft.AllDay,
		Visibility:  draft.Visibility,
		Category:    draft.Category,
		CreatorID:   draft.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.events[event.ID] = event
	return event, nil
}

// UpdateEvent implements application.EventStore.
func (s *EventStore) UpdateEvent(ctx context.Context, id string, patch application.EventPatch) (application.CalendarEvent, error) {
	if err := s.wait(ctx); err != nil {
		return application.CalendarEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates++
	if s.Err != nil {
		return application.CalendarEvent{}, s.Err
	}
	current, ok := s.events[id]
	if !ok {
		return application.CalendarEvent{}, application.ErrNotFound
	}
	updated := patch.ApplyTo(current)
	updated.UpdatedAt = s.clock.Now()
	s.events[id] = updated
	return updated, nil
}

// DeleteEvent implements application.EventStore.
func (s *EventStore) DeleteEvent(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.events[id]; !ok {
		return application.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// Provider is a static application.ExternalProvider.
type Provider struct {
	mu    sync.Mutex
	fetch application.ExternalFetch
	calls int
}

// NewProvider returns a provider that always yields events.
func NewProvider(events ...application.ExternalEvent) *Provider {
	return &Provider{fetch: application.ExternalFetch{Events: events}}
}

// Fail makes subsequent fetches report err.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	p.fetch = application.ExternalFetch{Err: err}
	p.mu.Unlock()
}

// Calls returns the number of fetches made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// FetchExternalEvents implements application.ExternalProvider.
func (p *Provider) FetchExternalEvents(ctx context.Context) application.ExternalFetch {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	out := p.fetch
	out.Events = append([]application.ExternalEvent(nil), p.fetch.Events...)
	return out
}
