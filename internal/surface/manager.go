package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/church-agenda/internal/application"
)

// DefaultIdleTTL is how long an untouched view stays mounted.
const DefaultIdleTTL = 30 * time.Minute

// Manager keeps the mounted views. A view's timeline lives exactly as long as
// the view; unmounting or reaping it discards every in-flight result.
type Manager struct {
	coordinator *application.Coordinator
	ttl         time.Duration
	now         func() time.Time
	newID       func() string
	logger      *slog.Logger

	mu    sync.Mutex
	views map[string]*View
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTTL sets how long a view may stay untouched before Reap drops it.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides view id generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager builds a manager over coordinator.
func NewManager(coordinator *application.Coordinator, opts ...Option) *Manager {
	m := &Manager{
		coordinator: coordinator,
		ttl:         DefaultIdleTTL,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      slog.Default(),
		views:       make(map[string]*View),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mount loads a fresh timeline for window and registers a view for actor.
func (m *Manager) Mount(ctx context.Context, actor application.Principal, window application.Window) (*View, error) {
	if m == nil || m.coordinator == nil {
		return nil, fmt.Errorf("surface manager is nil")
	}
	tl, err := m.coordinator.Open(ctx, window)
	if err != nil {
		return nil, err
	}

	view := &View{
		id:          m.newID(),
		actor:       actor,
		coordinator: m.coordinator,
		timeline:    tl,
		now:         m.now,
		logger:      m.logger,
		lastUsed:    m.now(),
	}
	view.warn(tl.Warnings())

	m.mu.Lock()
	m.views[view.id] = view
	count := len(m.views)
	m.mu.Unlock()

	view.loggerFor(ctx, "Mount").InfoContext(ctx, "view mounted",
		"actor", actor.UserID, "event_count", tl.Len(), "mounted_views", count)
	return view, nil
}

// Get returns a mounted view and marks it used.
func (m *Manager) Get(id string) (*View, error) {
	m.mu.Lock()
	view, ok := m.views[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrViewNotFound
	}
	view.touch()
	return view, nil
}

// Unmount drops the view and invalidates its timeline.
func (m *Manager) Unmount(ctx context.Context, id string) error {
	m.mu.Lock()
	view, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}
	view.timeline.Invalidate()
	view.loggerFor(ctx, "Unmount").InfoContext(ctx, "view unmounted")
	return nil
}

// Reap unmounts every view idle for longer than the TTL and returns the ids
// it dropped.
func (m *Manager) Reap(now time.Time) []string {
	m.mu.Lock()
	var expired []*View
	for id, view := range m.views {
		if now.Sub(view.idleSince()) > m.ttl {
			expired = append(expired, view)
			delete(m.views, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, view := range expired {
		view.timeline.Invalidate()
		ids = append(ids, view.id)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		m.logger.Info("idle views reaped", "component", "surface", "count", len(ids))
	}
	return ids
}

// Len returns the number of mounted views.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}
