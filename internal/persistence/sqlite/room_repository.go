package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/meeting-checkin/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool, mapper: NewErrorMapper()}
}

const roomColumns = `id, name, location, capacity, facilities, created_at, updated_at`

func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		room.ID,
		room.Name,
		room.Location,
		room.Capacity,
		nullString(room.Facilities),
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, location = ?, capacity = ?, facilities = ?, updated_at = ?
		WHERE id = ?
	`,
		room.Name,
		room.Location,
		room.Capacity,
		nullString(room.Facilities),
		formatTime(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRow(result)
}

func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return r.scanRoom(r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := r.scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Rooms with meetings fail with ErrForeignKeyViolation.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRow(result)
}

func (r *RoomRepository) scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var facilities sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &facilities, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	if facilities.Valid {
		room.Facilities = &facilities.String
	}

	var err error
	if room.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
