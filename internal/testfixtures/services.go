package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/church-agenda/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Palette     application.Palette
	Logger      *slog.Logger
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(referenceTime),
		IDGenerator: NewIDGenerator("draft"),
		Palette:     application.DefaultPalette(),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if clock != nil {
			factory.Clock = clock
		}
	}
}

// WithLocation sets the wall-clock zone of local events.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if loc != nil {
			factory.Location = loc
		}
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services bundles an engine with the components built on top of it.
type Services struct {
	Store       *EventStore
	Provider    *Provider
	Engine      *application.Engine
	Coordinator *application.Coordinator
	Projection  *application.PublicProjection
}

// NewServices wires an engine, coordinator and projection over an in-memory
// store seeded with local and a static provider serving external.
func (f *ServiceFactory) NewServices(local []application.CalendarEvent, external []application.ExternalEvent) Services {
	store := NewEventStore(f.Clock, local...)
	provider := NewProvider(external...)
	engine := application.NewEngine(store, provider, f.Palette, f.Logger)
	return Services{
		Store:       store,
		Provider:    provider,
		Engine:      engine,
		Coordinator: application.NewCoordinator(engine, f.IDGenerator.NextFunc(), f.Logger, application.WithLocation(f.Location)),
		Projection:  application.NewPublicProjection(engine, "Agenda", "agenda.test", f.Clock.NowFunc(), f.Logger),
	}
}
