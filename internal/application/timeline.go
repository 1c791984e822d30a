package application

import "sync"

// Timeline is the merged collection held by one calendar view. Reads return
// copies; writes only happen through the Coordinator.
type Timeline struct {
	mu         sync.Mutex
	window     Window
	events     []MergedEvent
	warnings   []Warning
	inFlight   map[string]uint64
	generation uint64
	closed     bool
}

// NewTimeline seeds a timeline with the result of a load.
func NewTimeline(window Window, result LoadResult) *Timeline {
	return &Timeline{
		window:   window,
		events:   cloneMerged(result.Events),
		warnings: append([]Warning(nil), result.Warnings...),
		inFlight: make(map[string]uint64),
	}
}

// Window returns the range the timeline was loaded for.
func (t *Timeline) Window() Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Events returns a deep copy of the current collection.
func (t *Timeline) Events() []MergedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := cloneMerged(t.events)
	if out == nil {
		out = []MergedEvent{}
	}
	return out
}

// Warnings returns the warnings of the most recent load.
func (t *Timeline) Warnings() []Warning {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Warning(nil), t.warnings...)
}

// Find looks an event up by its merge key.
func (t *Timeline) Find(key string) (MergedEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx := t.indexOf(key); idx >= 0 {
		return t.events[idx].Clone(), true
	}
	return MergedEvent{}, false
}

// Busy reports whether a mutation on key is in flight.
func (t *Timeline) Busy(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inFlight[key]
	return ok
}

// Len returns the number of events.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Invalidate discards the timeline. Results of operations started earlier are
// dropped instead of applied.
func (t *Timeline) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.generation++
	t.events = nil
	t.inFlight = make(map[string]uint64)
}

// Invalidated reports whether Invalidate was called.
func (t *Timeline) Invalidated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Timeline) indexOf(key string) int {
	for i, event := range t.events {
		if event.Key() == key {
			return i
		}
	}
	return -1
}

// current returns the generation, or false when the timeline is closed.
func (t *Timeline) current() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation, !t.closed
}

// reset replaces the collection after a reload. Pending results from before
// the reset are discarded, but their keys stay in flight until the store call
// returns so no second mutation reaches the store for the same event.
func (t *Timeline) reset(gen uint64, result LoadResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return false
	}
	t.generation++
	t.events = cloneMerged(result.Events)
	t.warnings = append([]Warning(nil), result.Warnings...)
	return true
}

// undo restores one entry to its pre-mutation state. after is the key of the
// entry that preceded a removed one; empty when it was first.
type undo struct {
	key      string
	index    int
	after    string
	previous *MergedEvent
	inserted bool
	removed  bool
}

// acquire marks key as in flight and returns the generation it belongs to.
func (t *Timeline) acquire(key string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrViewInvalidated
	}
	if _, busy := t.inFlight[key]; busy {
		return 0, ErrMutationInFlight
	}
	t.inFlight[key] = t.generation
	return t.generation, nil
}

// release clears key. The holder releases even when the timeline was reset in
// between; acquire refuses a busy key, so the entry is always the holder's.
func (t *Timeline) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, key)
}

// lookup returns the live entry for key under the given generation.
func (t *Timeline) lookup(key string, gen uint64) (MergedEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return MergedEvent{}, ErrViewInvalidated
	}
	idx := t.indexOf(key)
	if idx < 0 {
		return MergedEvent{}, ErrNotFound
	}
	return t.events[idx].Clone(), nil
}

// insert appends event optimistically.
func (t *Timeline) insert(gen uint64, event MergedEvent) (undo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return undo{}, ErrViewInvalidated
	}
	t.events = append(t.events, event.Clone())
	return undo{key: event.Key(), index: len(t.events) - 1, inserted: true}, nil
}

// put overwrites the entry for key in place.
func (t *Timeline) put(gen uint64, key string, event MergedEvent) (undo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return undo{}, ErrViewInvalidated
	}
	idx := t.indexOf(key)
	if idx < 0 {
		return undo{}, ErrNotFound
	}
	previous := t.events[idx].Clone()
	t.events[idx] = event.Clone()
	return undo{key: key, index: idx, previous: &previous}, nil
}

// remove drops the entry for key.
func (t *Timeline) remove(gen uint64, key string) (undo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return undo{}, ErrViewInvalidated
	}
	idx := t.indexOf(key)
	if idx < 0 {
		return undo{}, ErrNotFound
	}
	previous := t.events[idx].Clone()
	var after string
	if idx > 0 {
		after = t.events[idx-1].Key()
	}
	t.events = append(t.events[:idx], t.events[idx+1:]...)
	return undo{key: key, index: idx, after: after, previous: &previous, removed: true}, nil
}

// rollback reverses u. Other entries, including ones changed concurrently by
// other mutations, are left alone.
func (t *Timeline) rollback(gen uint64, u undo) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return false
	}
	switch {
	case u.inserted:
		if idx := t.indexOf(u.key); idx >= 0 {
			t.events = append(t.events[:idx], t.events[idx+1:]...)
		}
	case u.removed:
		idx := t.restoreIndex(u)
		t.events = append(t.events, MergedEvent{})
		copy(t.events[idx+1:], t.events[idx:])
		t.events[idx] = u.previous.Clone()
	default:
		if idx := t.indexOf(u.key); idx >= 0 {
			t.events[idx] = u.previous.Clone()
		}
	}
	return true
}

// commit swaps the optimistic entry for key with the confirmed one.
func (t *Timeline) commit(gen uint64, key string, event MergedEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.generation != gen {
		return false
	}
	if idx := t.indexOf(key); idx >= 0 {
		t.events[idx] = event.Clone()
	}
	return true
}

// restoreIndex places a removed entry back behind the neighbour it had, which
// may have moved since. The recorded index is the fallback when that
// neighbour is gone.
func (t *Timeline) restoreIndex(u undo) int {
	if u.after == "" {
		return 0
	}
	if idx := t.indexOf(u.after); idx >= 0 {
		return idx + 1
	}
	return min(u.index, len(t.events))
}
