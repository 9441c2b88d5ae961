package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/meeting-checkin/internal/adapters"
	"github.com/example/meeting-checkin/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger overrides the logger handed to services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewMeetingService builds a lifecycle controller, filling unset identifiers,
// clock, location and logger from the factory.
func (f *ServiceFactory) NewMeetingService(deps application.MeetingServiceDeps) *application.MeetingService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Location == nil {
		deps.Location = Zone
	}
	if deps.Logger == nil {
		deps.Logger = f.Logger
	}
	return application.NewMeetingService(deps)
}

// NewCheckinTokenService builds a token service using the factory clock.
func (f *ServiceFactory) NewCheckinTokenService(deps application.CheckinTokenServiceDeps) *application.CheckinTokenService {
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Logger == nil {
		deps.Logger = f.Logger
	}
	return application.NewCheckinTokenService(deps)
}

// NewAttendanceService builds an attendance matcher using the factory clock.
func (f *ServiceFactory) NewAttendanceService(deps application.AttendanceServiceDeps) *application.AttendanceService {
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Location == nil {
		deps.Location = Zone
	}
	if deps.Logger == nil {
		deps.Logger = f.Logger
	}
	return application.NewAttendanceService(deps)
}

// NewRoomService builds a room service, filling IDs, clock and logger from the factory.
func (f *ServiceFactory) NewRoomService(deps application.RoomServiceDeps) *application.RoomService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = f.IDGenerator.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	if deps.Logger == nil {
		deps.Logger = f.Logger
	}
	return application.NewRoomService(deps)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserRepository
	Hasher      application.PasswordHasher
	IDGenerator func() string
	Now         func() time.Time
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewUserServiceWithLogger(deps.Users, deps.Hasher, idGen, now, f.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		now,
		deps.SessionTTL,
		f.Logger,
	)
}

// Stack is every application service wired to one SQLite harness.
type Stack struct {
	Factory    *ServiceFactory
	Harness    *SQLiteHarness
	Meetings   *application.MeetingService
	Tokens     *application.CheckinTokenService
	Attendance *application.AttendanceService
	Rooms      *application.RoomService
	Users      *application.UserService
	Auth       *application.AuthService
}

// NewSQLiteStack wires the services through the persistence adapters. Password
// hashing is replaced by a cheap reversible scheme so tests stay fast.
func (f *ServiceFactory) NewSQLiteStack(tb testing.TB, notifier application.Notifier, metrics application.MetricsRecorder) *Stack {
	tb.Helper()

	harness := NewSQLiteHarness(tb)
	users := adapters.NewUserRepository(harness.Storage.Users)
	rooms := adapters.NewRoomRepository(harness.Storage.Rooms)
	meetings := adapters.NewMeetingRepository(harness.Storage.Meetings)
	sessions := adapters.NewSessionRepository(harness.Storage.Sessions)

	tokens := f.NewCheckinTokenService(application.CheckinTokenServiceDeps{Meetings: meetings, Metrics: metrics})
	return &Stack{
		Factory: f,
		Harness: harness,
		Meetings: f.NewMeetingService(application.MeetingServiceDeps{
			Meetings: meetings,
			Rooms:    rooms,
			Users:    users,
			Notifier: notifier,
			Metrics:  metrics,
		}),
		Tokens: tokens,
		Attendance: f.NewAttendanceService(application.AttendanceServiceDeps{
			Tokens:     tokens,
			Attendance: meetings,
			Users:      users,
			Metrics:    metrics,
		}),
		Rooms: f.NewRoomService(application.RoomServiceDeps{Rooms: rooms, Meetings: meetings}),
		Users: f.NewUserService(UserServiceDeps{Users: users, Hasher: FastHash}),
		Auth: f.NewAuthService(AuthServiceDeps{
			Credentials:    users,
			Sessions:       sessions,
			PasswordVerify: FastVerify,
			SessionTTL:     8 * time.Hour,
		}),
	}
}

// SeedUser stores the fixture directly through the repository.
func (s *Stack) SeedUser(tb testing.TB, fixture UserFixture) UserFixture {
	tb.Helper()
	if err := s.Harness.Storage.Users.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed user %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedRoom stores the fixture directly through the repository.
func (s *Stack) SeedRoom(tb testing.TB, fixture RoomFixture) RoomFixture {
	tb.Helper()
	if err := s.Harness.Storage.Rooms.CreateRoom(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed room %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedMeeting stores the fixture directly, bypassing lifecycle checks.
func (s *Stack) SeedMeeting(tb testing.TB, fixture MeetingFixture) MeetingFixture {
	tb.Helper()
	if err := s.Harness.Storage.Meetings.CreateMeeting(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("seed meeting %s: %v", fixture.ID, err)
	}
	return fixture
}

// FastHash is a test-only PasswordHasher.
func FastHash(password string) (string, error) {
	return "plain:" + password, nil
}

// FastVerify checks hashes produced by FastHash.
func FastVerify(hash, password string) error {
	if hash != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}
