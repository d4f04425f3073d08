package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

// ServiceFactory builds application services that share a deterministic clock,
// id sequence and booking engine.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Sinks       application.Sinks
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with a reference clock, an "id"
// sequence and a discarding logger.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      DiscardLogger(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithSinks routes audit entries, events and notifications to sinks.
func WithSinks(sinks application.Sinks) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Sinks = sinks
	}
}

// Engine returns a booking engine with default business hours on the factory clock.
func (f *ServiceFactory) Engine() *scheduler.Engine {
	return scheduler.NewEngine(scheduler.DefaultConfig(), f.Clock.NowFunc())
}

// NewRoomService builds a room service over the given repositories.
func (f *ServiceFactory) NewRoomService(rooms application.RoomRepository, bookings application.BookingRepository) *application.RoomService {
	return application.NewRoomServiceWithLogger(rooms, bookings, f.Engine(), f.Sinks, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewBookingService builds a booking service over the given repositories.
func (f *ServiceFactory) NewBookingService(bookings application.BookingRepository, rooms application.RoomRepository, notes application.NoteRepository, users application.UserRepository) *application.BookingService {
	return application.NewBookingServiceWithLogger(bookings, rooms, notes, users, f.Engine(), f.Sinks, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewUserService builds a user service over the given repositories.
func (f *ServiceFactory) NewUserService(users application.UserRepository, rooms application.RoomRepository) *application.UserService {
	return application.NewUserServiceWithLogger(users, rooms, f.Sinks, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}
