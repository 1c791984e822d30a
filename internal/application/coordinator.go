package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TempIDPrefix marks ids assigned optimistically before the store answers.
const TempIDPrefix = "tmp-"

// Coordinator applies mutation intents to a timeline. Writes are applied
// optimistically and rolled back entry by entry when the store call fails.
type Coordinator struct {
	engine      *Engine
	idGenerator func() string
	logger      *slog.Logger
	location    *time.Location
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLocation sets the wall-clock zone local events live in. Instants of
// drafts and patches are moved into it before all-day spans are detected and
// snapped, so whole days are whole days in that zone.
func WithLocation(loc *time.Location) CoordinatorOption {
	return func(c *Coordinator) {
		if loc != nil {
			c.location = loc
		}
	}
}

// NewCoordinator wires the coordinator to the engine whose store owns local
// events. idGenerator supplies the suffix of temporary ids.
func NewCoordinator(engine *Engine, idGenerator func() string, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	c := &Coordinator{engine: engine, idGenerator: idGenerator, logger: defaultLogger(logger), location: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the zone local events are kept in.
func (c *Coordinator) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

// local moves t into the coordinator's zone. Zero stays zero.
func (c *Coordinator) local(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(c.Location())
}

func (c *Coordinator) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, c.logger, "Coordinator", operation, attrs...)
}

// Open loads a fresh timeline for window.
func (c *Coordinator) Open(ctx context.Context, window Window) (*Timeline, error) {
	if c == nil || c.engine == nil {
		return nil, fmt.Errorf("Coordinator is nil")
	}
	result, err := c.engine.Load(ctx, window)
	if err != nil {
		return nil, err
	}
	return NewTimeline(window, result), nil
}

// Reload refetches both sources and replaces the timeline's collection.
// Mutations still in flight are discarded when they complete.
func (c *Coordinator) Reload(ctx context.Context, tl *Timeline) (LoadResult, error) {
	if c == nil || c.engine == nil {
		return LoadResult{}, fmt.Errorf("Coordinator is nil")
	}
	gen, open := tl.current()
	if !open {
		return LoadResult{}, ErrViewInvalidated
	}
	result, err := c.engine.Load(ctx, tl.Window())
	if err != nil {
		return LoadResult{}, err
	}
	if !tl.reset(gen, result) {
		return LoadResult{}, ErrViewInvalidated
	}
	return result, nil
}

// Apply runs intent against tl. External targets are rejected before anything
// else happens. The returned event is the confirmed state of the target; for
// deletes it is the removed event. When the timeline was invalidated while the
// store call was pending, the store result is returned with ErrViewInvalidated
// and the timeline is left untouched.
func (c *Coordinator) Apply(ctx context.Context, tl *Timeline, intent Intent) (event MergedEvent, err error) {
	if c == nil || c.engine == nil || c.engine.store == nil {
		return MergedEvent{}, fmt.Errorf("Coordinator is nil")
	}
	if tl == nil {
		return MergedEvent{}, fmt.Errorf("timeline is nil")
	}

	logger := c.loggerWith(ctx, string(intent.Kind), "origin", string(intent.Origin), "target_id", intent.TargetID)
	defer func() {
		if err == nil {
			logger.With("event_key", event.Key()).InfoContext(ctx, "mutation applied")
			return
		}
		if intent.Kind == IntentReschedule && intent.Revert != nil {
			intent.Revert()
		}
		switch {
		case errors.Is(err, ErrReadOnlySource):
			logger.ErrorContext(ctx, "mutation targeted a read-only event", "error", err, "error_kind", ErrorKind(err))
		case errors.Is(err, ErrViewInvalidated), errors.Is(err, ErrMutationInFlight):
			logger.InfoContext(ctx, "mutation not applied", "error", err, "error_kind", ErrorKind(err))
		default:
			logger.ErrorContext(ctx, "mutation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	switch intent.Origin {
	case OriginLocal:
		// owned by the event store
	case OriginExternal:
		fallthrough
	default:
		return MergedEvent{}, &ReadOnlySourceError{Kind: intent.Kind, Origin: intent.Origin, TargetID: intent.TargetID}
	}

	switch intent.Kind {
	case IntentCreate:
		return c.create(ctx, tl, intent.Draft)
	case IntentUpdate:
		return c.patch(ctx, tl, intent.Key(), intent.TargetID, intent.Patch)
	case IntentReschedule:
		allDay := intent.AllDay
		start, end := intent.Start, intent.End
		return c.patch(ctx, tl, intent.Key(), intent.TargetID, EventPatch{Start: &start, End: &end, AllDay: &allDay})
	case IntentDelete:
		return c.delete(ctx, tl, intent.Key(), intent.TargetID)
	default:
		vErr := &ValidationError{}
		vErr.add("kind", fmt.Sprintf("unknown intent kind %q", intent.Kind))
		return MergedEvent{}, vErr
	}
}

func (c *Coordinator) create(ctx context.Context, tl *Timeline, draft EventDraft) (MergedEvent, error) {
	draft.Start, draft.End = c.local(draft.Start), c.local(draft.End)
	draft = NormalizeDraft(draft)
	if err := ValidateDraft(draft); err != nil {
		return MergedEvent{}, err
	}

	optimistic := c.merged(CalendarEvent{
		ID:          TempIDPrefix + c.idGenerator(),
		Title:       draft.Title,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		AllDay:      draft.AllDay,
		Visibility:  draft.Visibility,
		Category:    draft.Category,
		CreatorID:   draft.CreatorID,
	})
	key := optimistic.Key()

	gen, err := tl.acquire(key)
	if err != nil {
		return MergedEvent{}, err
	}
	defer tl.release(key)

	u, err := tl.insert(gen, optimistic)
	if err != nil {
		return MergedEvent{}, err
	}

	created, err := c.engine.store.CreateEvent(ctx, draft)
	if err != nil {
		tl.rollback(gen, u)
		return MergedEvent{}, persistenceError("create event", err)
	}

	confirmed := c.merged(created)
	if !tl.commit(gen, key, confirmed) {
		return confirmed, ErrViewInvalidated
	}
	return confirmed, nil
}

func (c *Coordinator) patch(ctx context.Context, tl *Timeline, key, id string, patch EventPatch) (MergedEvent, error) {
	gen, err := tl.acquire(key)
	if err != nil {
		return MergedEvent{}, err
	}
	defer tl.release(key)

	current, err := tl.lookup(key, gen)
	if err != nil {
		return MergedEvent{}, err
	}
	if current.Local == nil {
		return MergedEvent{}, &ReadOnlySourceError{Kind: IntentUpdate, Origin: current.Origin, TargetID: id}
	}
	if patch.IsEmpty() {
		return current, nil
	}

	patch = c.normalizePatch(patch)
	next := patch.ApplyTo(*current.Local)
	if next.AllDay && (patch.Start != nil || patch.End != nil || patch.AllDay != nil) {
		next.Start, next.End = wholeDays(c.local(next.Start), c.local(next.End))
		start, end := next.Start, next.End
		patch.Start, patch.End = &start, &end
	}
	if err := ValidateEvent(next); err != nil {
		return MergedEvent{}, err
	}

	u, err := tl.put(gen, key, c.merged(next))
	if err != nil {
		return MergedEvent{}, err
	}

	updated, err := c.engine.store.UpdateEvent(ctx, id, patch)
	if err != nil {
		tl.rollback(gen, u)
		return MergedEvent{}, persistenceError("update event", err)
	}

	confirmed := c.merged(updated)
	if !tl.commit(gen, key, confirmed) {
		return confirmed, ErrViewInvalidated
	}
	return confirmed, nil
}

func (c *Coordinator) delete(ctx context.Context, tl *Timeline, key, id string) (MergedEvent, error) {
	gen, err := tl.acquire(key)
	if err != nil {
		return MergedEvent{}, err
	}
	defer tl.release(key)

	u, err := tl.remove(gen, key)
	if err != nil {
		return MergedEvent{}, err
	}
	removed := *u.previous

	if err := c.engine.store.DeleteEvent(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			tl.rollback(gen, u)
			return MergedEvent{}, persistenceError("delete event", err)
		}
		// already gone upstream; the removal stands
	}

	if gen2, open := tl.current(); !open || gen2 != gen {
		return removed, ErrViewInvalidated
	}
	return removed, nil
}

func (c *Coordinator) merged(event CalendarEvent) MergedEvent {
	return LocalMerged(event, localStyle(c.engine.palette, event))
}

func (c *Coordinator) normalizePatch(patch EventPatch) EventPatch {
	if patch.Start != nil {
		start := c.local(*patch.Start)
		patch.Start = &start
	}
	if patch.End != nil {
		end := c.local(*patch.End)
		patch.End = &end
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		patch.Category = &category
	}
	return patch
}
