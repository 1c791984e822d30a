package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EventStore is the persistence collaborator for locally owned events.
type EventStore interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, draft EventDraft) (CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// ExternalFetch is the outcome of an external provider call. Err is set when
// the provider was unavailable; Events then holds whatever could still be
// loaded, usually nothing.
type ExternalFetch struct {
	Events []ExternalEvent
	Err    error
}

// ExternalProvider loads read-only events from a third-party calendar. It
// never fails from the caller's point of view.
type ExternalProvider interface {
	FetchExternalEvents(ctx context.Context) ExternalFetch
}

// Merge tags local and external events and concatenates them, local first.
// No ordering is imposed beyond that.
func Merge(local []CalendarEvent, external []ExternalEvent, palette Palette) []MergedEvent {
	merged := make([]MergedEvent, 0, len(local)+len(external))
	for _, event := range local {
		merged = append(merged, LocalMerged(event, localStyle(palette, event)))
	}
	for _, event := range external {
		merged = append(merged, ExternalMerged(event, externalStyle(palette)))
	}
	return merged
}

// PublicOnly keeps local events whose visibility is public.
func PublicOnly(events []CalendarEvent) []CalendarEvent {
	out := make([]CalendarEvent, 0, len(events))
	for _, event := range events {
		if event.Visibility == VisibilityPublic {
			out = append(out, event)
		}
	}
	return out
}

// Engine loads both sources and merges them.
type Engine struct {
	store    EventStore
	provider ExternalProvider
	palette  Palette
	logger   *slog.Logger
}

// NewEngine wires the reconciliation engine. A nil provider behaves like a
// provider with no feeds.
func NewEngine(store EventStore, provider ExternalProvider, palette Palette, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		palette:  palette,
		logger:   defaultLogger(logger),
	}
}

// Palette returns the palette used for style derivation.
func (e *Engine) Palette() Palette {
	return e.palette
}

// Load fetches local and external events concurrently and merges them once
// both have settled. A provider failure degrades to local-only output with a
// warning; a store failure fails the load.
func (e *Engine) Load(ctx context.Context, window Window) (LoadResult, error) {
	if e == nil || e.store == nil {
		return LoadResult{}, fmt.Errorf("engine is not configured")
	}
	logger := serviceLogger(ctx, e.logger, "Engine", "Load")

	var (
		wg       sync.WaitGroup
		local    []CalendarEvent
		localErr error
		external ExternalFetch
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		local, localErr = e.store.ListEvents(ctx, window.filter())
	}()

	if e.provider != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			external = e.provider.FetchExternalEvents(ctx)
		}()
	}

	wg.Wait()

	if localErr != nil {
		err := persistenceError("list events", localErr)
		logger.ErrorContext(ctx, "local events unavailable", "error", err, "error_kind", ErrorKind(err))
		return LoadResult{}, err
	}

	result := LoadResult{}
	externalEvents := external.Events
	if external.Err != nil {
		logger.WarnContext(ctx, "external events unavailable, rendering local events only", "error", external.Err)
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningExternalUnavailable,
			Message: "external events unavailable",
			Err:     fmt.Errorf("%w: %w", ErrProviderUnavailable, external.Err),
		})
	}

	result.Events = Merge(local, inWindow(externalEvents, window), e.palette)
	logger.DebugContext(ctx, "calendar merged", "local", len(local), "external", len(result.Events)-len(local))
	return result, nil
}

// LoadPublic fetches only public local events. The external provider is never
// consulted on this path.
func (e *Engine) LoadPublic(ctx context.Context, window Window) ([]MergedEvent, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("engine is not configured")
	}
	filter := window.filter()
	public := VisibilityPublic
	filter.Visibility = &public

	local, err := e.store.ListEvents(ctx, filter)
	if err != nil {
		err = persistenceError("list public events", err)
		serviceLogger(ctx, e.logger, "Engine", "LoadPublic").ErrorContext(ctx, "public events unavailable", "error", err)
		return nil, err
	}
	return Merge(PublicOnly(local), nil, e.palette), nil
}

func inWindow(events []ExternalEvent, window Window) []ExternalEvent {
	if window.Start.IsZero() && window.End.IsZero() {
		return events
	}
	out := make([]ExternalEvent, 0, len(events))
	for _, event := range events {
		if window.Contains(event.Start, event.End) {
			out = append(out, event)
		}
	}
	return out
}
