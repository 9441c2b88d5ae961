package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/meeting-checkin/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// Storage bundles the SQLite repositories that share one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users    *UserRepository
	Rooms    *RoomRepository
	Meetings *MeetingRepository
	Sessions *SessionRepository
}

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:     pool,
		Users:    NewUserRepository(pool),
		Rooms:    NewRoomRepository(pool),
		Meetings: NewMeetingRepository(pool),
		Sessions: NewSessionRepository(pool),
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationDir,
		logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrate sqlite storage: %w", err)
	}
	return nil
}
