package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applyResult struct {
	event MergedEvent
	err   error
}

func sequenceIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("%d", atomic.AddInt64(&n, 1))
	}
}

func openTimeline(t *testing.T, store *storeStub, external ...ExternalEvent) (*Coordinator, *Timeline) {
	t.Helper()
	engine := NewEngine(store, &providerStub{fetch: ExternalFetch{Events: external}}, DefaultPalette(), nil)
	coordinator := NewCoordinator(engine, sequenceIDs(), nil)
	tl, err := coordinator.Open(context.Background(), Window{})
	require.NoError(t, err)
	return coordinator, tl
}

func ptr[T any](v T) *T { return &v }

func TestApplyRejectsExternalTargetsBeforeStore(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	coordinator, tl := openTimeline(t, store, externalG1())
	before := tl.Events()
	target, ok := tl.Find("external:g1")
	require.True(t, ok)

	reverted := 0
	intents := []Intent{
		UpdateIntent(target, EventPatch{Title: ptr("renamed")}),
		DeleteIntent(target),
		RescheduleIntent(target, mustTime("2024-03-11T09:00"), mustTime("2024-03-11T09:30"), false, func() { reverted++ }),
		{Kind: IntentCreate, Origin: OriginExternal, Draft: EventDraft{Title: "x", Start: mustTime("2024-03-11T09:00"), End: mustTime("2024-03-11T10:00")}},
	}

	for _, intent := range intents {
		_, err := coordinator.Apply(context.Background(), tl, intent)
		require.Error(t, err, intent.Kind)
		assert.ErrorIs(t, err, ErrReadOnlySource)
		var roErr *ReadOnlySourceError
		require.ErrorAs(t, err, &roErr)
		assert.Equal(t, intent.Kind, roErr.Kind)
	}

	assert.Zero(t, store.calls(), "read-only targets must never reach the store")
	assert.Equal(t, before, tl.Events())
	assert.Equal(t, 1, reverted)
}

func TestApplyCreateReplacesTemporaryIdentity(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	coordinator, tl := openTimeline(t, store)

	draft := EventDraft{
		Title:      "  Choir rehearsal ",
		Start:      mustTime("2024-03-12T19:00"),
		End:        mustTime("2024-03-12T20:30"),
		Visibility: VisibilityPublic,
		Category:   "worship",
		CreatorID:  "pastor",
	}
	event, err := coordinator.Apply(context.Background(), tl, CreateIntent(draft))
	require.NoError(t, err)

	assert.Equal(t, OriginLocal, event.Origin)
	require.NotNil(t, event.Local)
	assert.Equal(t, store.events[0], *event.Local, "fields must equal the server response")
	assert.Equal(t, "Choir rehearsal", event.Local.Title)

	events := tl.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "local:evt-1", events[0].Key())
	assert.False(t, strings.HasPrefix(events[0].ID(), TempIDPrefix))
	assert.False(t, tl.Busy(events[0].Key()))
}

func TestApplyCreateDefaultsAndAllDaySnapping(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	coordinator, tl := openTimeline(t, store)

	event, err := coordinator.Apply(context.Background(), tl, CreateIntent(EventDraft{
		Title:  "Retreat",
		Start:  mustTime("2024-03-15T13:00"),
		End:    mustTime("2024-03-16T09:00"),
		AllDay: true,
	}))
	require.NoError(t, err)
	assert.Equal(t, VisibilityPrivate, event.Local.Visibility)
	assert.Equal(t, mustTime("2024-03-15T00:00"), event.Local.Start)
	assert.Equal(t, mustTime("2024-03-17T00:00"), event.Local.End)
	assert.Equal(t, 1, tl.Len())
}

func TestApplySnapsAllDayInCoordinatorZone(t *testing.T) {
	t.Parallel()

	eastern := time.FixedZone("EST", -5*60*60)
	store := newStoreStub(privateEventA())
	engine := NewEngine(store, &providerStub{}, DefaultPalette(), nil)
	coordinator := NewCoordinator(engine, sequenceIDs(), nil, WithLocation(eastern))
	assert.Equal(t, eastern, coordinator.Location())
	tl, err := coordinator.Open(context.Background(), Window{})
	require.NoError(t, err)

	created, err := coordinator.Apply(context.Background(), tl, CreateIntent(EventDraft{
		Title:  "Retreat",
		Start:  mustTime("2024-03-15T03:00"),
		End:    mustTime("2024-03-16T03:00"),
		AllDay: true,
	}))
	require.NoError(t, err)
	assert.True(t, created.Local.Start.Equal(time.Date(2024, time.March, 14, 0, 0, 0, 0, eastern)), "start %v", created.Local.Start)
	assert.True(t, created.Local.End.Equal(time.Date(2024, time.March, 16, 0, 0, 0, 0, eastern)), "end %v", created.Local.End)

	target, _ := tl.Find("local:a")
	moved, err := coordinator.Apply(context.Background(), tl,
		RescheduleIntent(target, mustTime("2024-03-12T05:00"), mustTime("2024-03-13T05:00"), true, nil))
	require.NoError(t, err)
	assert.True(t, moved.Local.Start.Equal(time.Date(2024, time.March, 12, 0, 0, 0, 0, eastern)), "start %v", moved.Local.Start)
	assert.True(t, moved.Local.End.Equal(time.Date(2024, time.March, 13, 0, 0, 0, 0, eastern)), "end %v", moved.Local.End)
	assert.Equal(t, eastern, moved.Local.Start.Location())
}

func TestApplyValidationFailsBeforeOptimisticApply(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	coordinator, tl := openTimeline(t, store)
	before := tl.Events()
	target, _ := tl.Find("local:a")

	_, err := coordinator.Apply(context.Background(), tl, CreateIntent(EventDraft{
		Title: "Backwards",
		Start: mustTime("2024-03-12T10:00"),
		End:   mustTime("2024-03-12T09:00"),
	}))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "time")

	_, err = coordinator.Apply(context.Background(), tl, UpdateIntent(target, EventPatch{Title: ptr("   ")}))
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "title")

	_, err = coordinator.Apply(context.Background(), tl, UpdateIntent(target, EventPatch{End: ptr(mustTime("2024-03-10T09:00"))}))
	require.ErrorAs(t, err, &vErr)

	assert.Zero(t, store.calls())
	assert.Equal(t, before, tl.Events())
}

func TestApplyEqualStartAndEndIsValid(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	coordinator, tl := openTimeline(t, store)

	at := mustTime("2024-03-12T10:00")
	_, err := coordinator.Apply(context.Background(), tl, CreateIntent(EventDraft{Title: "Reminder", Start: at, End: at}))
	require.NoError(t, err)
}

func TestApplyRollsBackOnStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("database is locked")
	other := CalendarEvent{ID: "b", Title: "Youth night", Visibility: VisibilityPublic, Category: "youth",
		Start: mustTime("2024-03-13T18:00"), End: mustTime("2024-03-13T20:00")}

	cases := []struct {
		name   string
		intent func(target MergedEvent, revert func()) Intent
	}{
		{name: "create", intent: func(MergedEvent, func()) Intent {
			return CreateIntent(EventDraft{Title: "New", Start: mustTime("2024-03-14T10:00"), End: mustTime("2024-03-14T11:00")})
		}},
		{name: "update", intent: func(target MergedEvent, _ func()) Intent {
			return UpdateIntent(target, EventPatch{Title: ptr("Renamed"), Visibility: ptr(VisibilityPublic)})
		}},
		{name: "reschedule", intent: func(target MergedEvent, revert func()) Intent {
			return RescheduleIntent(target, mustTime("2024-03-11T10:00"), mustTime("2024-03-11T11:00"), false, revert)
		}},
		{name: "delete", intent: func(target MergedEvent, _ func()) Intent {
			return DeleteIntent(target)
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newStoreStub(privateEventA(), other)
			store.createErr, store.updateErr, store.deleteErr = storeErr, storeErr, storeErr
			coordinator, tl := openTimeline(t, store, externalG1())
			before := tl.Events()
			target, _ := tl.Find("local:a")

			_, err := coordinator.Apply(context.Background(), tl, tc.intent(target, func() {}))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPersistence)
			assert.ErrorIs(t, err, storeErr)
			assert.Equal(t, before, tl.Events(), "collection must be restored exactly")
			assert.Equal(t, 1, store.calls())
		})
	}
}

func TestApplyShowsOptimisticStateAndSerializesPerEvent(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA(), CalendarEvent{ID: "b", Title: "Other",
		Start: mustTime("2024-03-13T18:00"), End: mustTime("2024-03-13T20:00"), Visibility: VisibilityPrivate})
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 2)
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")

	done := make(chan applyResult, 1)
	go func() {
		event, err := coordinator.Apply(context.Background(), tl, UpdateIntent(target, EventPatch{Title: ptr("Optimistic")}))
		done <- applyResult{event, err}
	}()
	<-store.entered

	pending, ok := tl.Find("local:a")
	require.True(t, ok)
	assert.Equal(t, "Optimistic", pending.Title())
	assert.True(t, tl.Busy("local:a"))

	_, err := coordinator.Apply(context.Background(), tl, DeleteIntent(target))
	assert.ErrorIs(t, err, ErrMutationInFlight)

	otherTarget, _ := tl.Find("local:b")
	go func() {
		_, _ = coordinator.Apply(context.Background(), tl, UpdateIntent(otherTarget, EventPatch{Title: ptr("Parallel")}))
	}()
	<-store.entered

	close(store.gate)
	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, "Optimistic", result.event.Title())
	assert.False(t, tl.Busy("local:a"))
}

func TestApplyDiscardsResultsAfterInvalidate(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")

	done := make(chan applyResult, 1)
	go func() {
		event, err := coordinator.Apply(context.Background(), tl, UpdateIntent(target, EventPatch{Title: ptr("Late")}))
		done <- applyResult{event, err}
	}()
	<-store.entered

	tl.Invalidate()
	close(store.gate)

	result := <-done
	assert.ErrorIs(t, result.err, ErrViewInvalidated)
	assert.Equal(t, "Late", result.event.Title(), "persisted state is still reported")
	assert.Empty(t, tl.Events())
	assert.True(t, tl.Invalidated())

	_, err := coordinator.Apply(context.Background(), tl, UpdateIntent(target, EventPatch{Title: ptr("again")}))
	assert.ErrorIs(t, err, ErrViewInvalidated)
}

func TestApplyDiscardsResultsAfterReload(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	coordinator, tl := openTimeline(t, store)

	done := make(chan applyResult, 1)
	go func() {
		event, err := coordinator.Apply(context.Background(), tl, CreateIntent(EventDraft{
			Title: "Slow", Start: mustTime("2024-03-14T10:00"), End: mustTime("2024-03-14T11:00")}))
		done <- applyResult{event, err}
	}()
	<-store.entered
	require.Equal(t, 2, tl.Len())

	_, err := coordinator.Reload(context.Background(), tl)
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len(), "reload drops the optimistic entry")

	close(store.gate)
	result := <-done
	assert.ErrorIs(t, result.err, ErrViewInvalidated)
	assert.Equal(t, 1, tl.Len())
}

func TestApplyKeepsEventSerializedAcrossReload(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 2)
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")

	done := make(chan applyResult, 1)
	go func() {
		event, err := coordinator.Apply(context.Background(), tl, UpdateIntent(target, EventPatch{Title: ptr("First")}))
		done <- applyResult{event, err}
	}()
	<-store.entered

	_, err := coordinator.Reload(context.Background(), tl)
	require.NoError(t, err)
	assert.True(t, tl.Busy("local:a"), "the store call is still pending")

	reloaded, ok := tl.Find("local:a")
	require.True(t, ok)
	_, err = coordinator.Apply(context.Background(), tl, UpdateIntent(reloaded, EventPatch{Title: ptr("Second")}))
	assert.ErrorIs(t, err, ErrMutationInFlight)
	assert.Len(t, store.entered, 0, "second mutation must not reach the store")

	close(store.gate)
	result := <-done
	assert.ErrorIs(t, result.err, ErrViewInvalidated)
	assert.False(t, tl.Busy("local:a"))
	assert.Equal(t, 1, store.updateCalls)
}

func TestApplyDeleteReportsReloadDuringUpstreamNotFound(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")
	store.events = nil
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)

	done := make(chan applyResult, 1)
	go func() {
		event, err := coordinator.Apply(context.Background(), tl, DeleteIntent(target))
		done <- applyResult{event, err}
	}()
	<-store.entered

	_, err := coordinator.Reload(context.Background(), tl)
	require.NoError(t, err)
	close(store.gate)

	result := <-done
	assert.ErrorIs(t, result.err, ErrViewInvalidated)
	assert.Equal(t, "local:a", result.event.Key())
	assert.Zero(t, tl.Len())
}

func TestApplyDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	other := CalendarEvent{ID: "b", Title: "Other", Visibility: VisibilityPublic,
		Start: mustTime("2024-03-13T18:00"), End: mustTime("2024-03-13T20:00")}
	store := newStoreStub(privateEventA(), other)
	coordinator, tl := openTimeline(t, store, externalG1())
	target, _ := tl.Find("local:a")

	removed, err := coordinator.Apply(context.Background(), tl, DeleteIntent(target))
	require.NoError(t, err)
	assert.Equal(t, "local:a", removed.Key())
	afterFirst := tl.Events()

	_, err = coordinator.Apply(context.Background(), tl, DeleteIntent(target))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, afterFirst, tl.Events())
	assert.Equal(t, 1, store.deleteCalls)

	remaining, ok := tl.Find("local:b")
	require.True(t, ok)
	assert.Equal(t, other, *remaining.Local)
}

func TestApplyDeleteOfUpstreamRemovedEventKeepsRemoval(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")
	store.events = nil

	_, err := coordinator.Apply(context.Background(), tl, DeleteIntent(target))
	require.NoError(t, err)
	assert.Zero(t, tl.Len())
}

func TestScenarioDragFailureRevertsSlot(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	store.updateErr = errors.New("network down")
	store.gate = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")

	var reverted atomic.Bool
	done := make(chan applyResult, 1)
	go func() {
		event, err := coordinator.Apply(context.Background(), tl, RescheduleIntent(target,
			mustTime("2024-03-11T10:00"), mustTime("2024-03-11T11:00"), false, func() { reverted.Store(true) }))
		done <- applyResult{event, err}
	}()
	<-store.entered

	moved, _ := tl.Find("local:a")
	start, _, _ := moved.Span()
	assert.Equal(t, mustTime("2024-03-11T10:00"), start, "grid updates before the store answers")

	close(store.gate)
	result := <-done
	require.ErrorIs(t, result.err, ErrPersistence)
	assert.True(t, reverted.Load())

	restored, _ := tl.Find("local:a")
	start, end, _ := restored.Span()
	assert.Equal(t, mustTime("2024-03-10T10:00"), start)
	assert.Equal(t, mustTime("2024-03-10T11:00"), end)
}

func TestApplyRescheduleSuccess(t *testing.T) {
	t.Parallel()

	store := newStoreStub(privateEventA())
	coordinator, tl := openTimeline(t, store)
	target, _ := tl.Find("local:a")

	reverted := false
	event, err := coordinator.Apply(context.Background(), tl, RescheduleIntent(target,
		mustTime("2024-03-11T10:00"), mustTime("2024-03-11T12:00"), false, func() { reverted = true }))
	require.NoError(t, err)
	assert.False(t, reverted)
	assert.Equal(t, mustTime("2024-03-11T12:00"), event.Local.End)
	assert.Equal(t, testStamp.Add(time.Hour), event.Local.UpdatedAt, "server response is authoritative")
}

func TestApplyUnknownKindIsValidationError(t *testing.T) {
	t.Parallel()

	store := newStoreStub()
	coordinator, tl := openTimeline(t, store)

	_, err := coordinator.Apply(context.Background(), tl, Intent{Kind: "archive", Origin: OriginLocal})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, store.calls())
}
