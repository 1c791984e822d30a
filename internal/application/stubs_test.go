package application

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var testStamp = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// storeStub is an in-memory EventStore that counts every call.
type storeStub struct {
	mu     sync.Mutex
	events []CalendarEvent
	nextID int

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// gate, when set, blocks mutating calls until it is closed or receives.
	gate    chan struct{}
	entered chan struct{}

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int
	filters     []EventFilter
}

func newStoreStub(events ...CalendarEvent) *storeStub {
	return &storeStub{events: append([]CalendarEvent(nil), events...)}
}

func (s *storeStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls + s.updateCalls + s.deleteCalls
}

func (s *storeStub) wait(ctx context.Context) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate == nil {
		return nil
	}
	select {
	case <-s.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *storeStub) ListEvents(ctx context.Context, filter EventFilter) ([]CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	s.filters = append(s.filters, filter)
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]CalendarEvent, 0, len(s.events))
	for _, event := range s.events {
		if filter.Visibility != nil && event.Visibility != *filter.Visibility {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *storeStub) CreateEvent(ctx context.Context, draft EventDraft) (CalendarEvent, error) {
	if err := s.wait(ctx); err != nil {
		return CalendarEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return CalendarEvent{}, s.createErr
	}
	s.nextID++
	event := CalendarEvent{
		ID:          fmt.Sprintf("evt-%d", s.nextID),
		Title:       draft.Title,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		AllDay:      draft.AllDay,
		Visibility:  draft.Visibility,
		Category:    draft.Category,
		CreatorID:   draft.CreatorID,
		CreatedAt:   testStamp,
		UpdatedAt:   testStamp,
	}
	s.events = append(s.events, event)
	return event, nil
}

func (s *storeStub) UpdateEvent(ctx context.Context, id string, patch EventPatch) (CalendarEvent, error) {
	if err := s.wait(ctx); err != nil {
		return CalendarEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return CalendarEvent{}, s.updateErr
	}
	for i, event := range s.events {
		if event.ID == id {
			updated := patch.ApplyTo(event)
			updated.UpdatedAt = testStamp.Add(time.Hour)
			s.events[i] = updated
			return updated, nil
		}
	}
	return CalendarEvent{}, ErrNotFound
}

func (s *storeStub) DeleteEvent(ctx context.Context, id string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, event := range s.events {
		if event.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type providerStub struct {
	mu    sync.Mutex
	fetch ExternalFetch
	calls int
	delay time.Duration
}

func (p *providerStub) FetchExternalEvents(ctx context.Context) ExternalFetch {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ExternalFetch{Err: ctx.Err()}
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.fetch
}

func (p *providerStub) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func mustTime(value string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func privateEventA() CalendarEvent {
	return CalendarEvent{
		ID:         "a",
		Title:      "Elders meeting",
		Start:      mustTime("2024-03-10T10:00"),
		End:        mustTime("2024-03-10T11:00"),
		Visibility: VisibilityPrivate,
		CreatorID:  "pastor",
		CreatedAt:  testStamp,
		UpdatedAt:  testStamp,
	}
}

func externalG1() ExternalEvent {
	return ExternalEvent{
		ID:    "g1",
		Title: "Dentist",
		Start: mustTime("2024-03-10T09:00"),
		End:   mustTime("2024-03-10T09:30"),
	}
}
