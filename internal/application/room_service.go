package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/meeting-checkin/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// RoomMeetings lists every meeting booked into a room, whatever its status.
type RoomMeetings interface {
	ListRoomMeetings(ctx context.Context, roomID string) ([]Meeting, error)
}

// RoomInUseError rejects deleting a room that meetings still reference.
// MeetingIDs is empty when the reference was only detected by the store.
type RoomInUseError struct {
	RoomID     string
	MeetingIDs []string
}

// Error implements the error interface.
func (e *RoomInUseError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.MeetingIDs) == 0 {
		return fmt.Sprintf("room %s is referenced by meetings", e.RoomID)
	}
	return fmt.Sprintf("room %s is referenced by %d meetings: %s", e.RoomID, len(e.MeetingIDs), strings.Join(e.MeetingIDs, ", "))
}

// RoomServiceDeps bundles the collaborators of RoomService.
type RoomServiceDeps struct {
	Rooms       RoomRepository
	Meetings    RoomMeetings
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// RoomService maintains the room directory meetings are booked into. Reads
// are open to any session, writes to administrators.
type RoomService struct {
	rooms       RoomRepository
	meetings    RoomMeetings
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

func NewRoomService(deps RoomServiceDeps) *RoomService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &RoomService{
		rooms:       deps.Rooms,
		meetings:    deps.Meetings,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

func (s *RoomService) ready() error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}
	return nil
}

func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID, "capacity", room.Capacity).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin {
		err = roomWriteDenied
		return
	}
	candidate, vErr := buildRoom(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate.ID = s.idGenerator()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	room, err = s.rooms.CreateRoom(ctx, candidate)
	err = mapRoomRepoError(err)
	return
}

// GetRoom backs the room picker of the meeting form.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, roomID string) (Room, error) {
	if err := s.ready(); err != nil {
		return Room{}, err
	}
	if principal.UserID == "" {
		return Room{}, ErrUnauthorized
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// UpdateRoom replaces the room attributes. Meetings keep pointing at the room by ID.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("capacity", room.Capacity).InfoContext(ctx, "room updated")
	}()

	if !params.Principal.IsAdmin {
		err = roomWriteDenied
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	candidate, vErr := buildRoom(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, candidate)
	err = mapRoomRepoError(err)
	return
}

// DeleteRoom removes a room no meeting is booked into. Otherwise it fails
// with *RoomInUseError naming the meetings, cancelled and completed ones included.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room deleted")
	}()

	if !principal.IsAdmin {
		err = roomWriteDenied
		return
	}
	if _, err = s.rooms.GetRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	if s.meetings != nil {
		var booked []Meeting
		booked, err = s.meetings.ListRoomMeetings(ctx, roomID)
		if err != nil {
			err = fmt.Errorf("list room meetings: %w", err)
			return
		}
		if len(booked) > 0 {
			err = &RoomInUseError{RoomID: roomID, MeetingIDs: meetingIDs(booked)}
			return
		}
	}

	if err = s.rooms.DeleteRoom(ctx, roomID); errors.Is(err, persistence.ErrForeignKeyViolation) {
		err = &RoomInUseError{RoomID: roomID}
		return
	}
	err = mapRoomRepoError(err)
	return
}

// ListRooms orders rooms by name, case-insensitively.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	rooms, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}
	sort.Slice(rooms, func(i, j int) bool {
		a, b := strings.ToLower(rooms[i].Name), strings.ToLower(rooms[j].Name)
		if a == b {
			return rooms[i].ID < rooms[j].ID
		}
		return a < b
	})
	return
}

var roomWriteDenied = fmt.Errorf("only administrators may change rooms: %w", ErrUnauthorized)

// buildRoom trims input into a room record and collects field errors.
func buildRoom(input RoomInput) (Room, *ValidationError) {
	vErr := &ValidationError{}
	room := Room{
		Name:       strings.TrimSpace(input.Name),
		Location:   strings.TrimSpace(input.Location),
		Capacity:   input.Capacity,
		Facilities: normalizeOptionalString(input.Facilities),
	}
	if room.Name == "" {
		vErr.add("name", "name is required")
	}
	if room.Location == "" {
		vErr.add("location", "location is required")
	}
	if room.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	return room, vErr
}

// meetingIDs orders booked meetings by date and start time.
func meetingIDs(meetings []Meeting) []string {
	sorted := append([]Meeting(nil), meetings...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		if sorted[i].StartTime != sorted[j].StartTime {
			return sorted[i].StartTime < sorted[j].StartTime
		}
		return sorted[i].ID < sorted[j].ID
	})
	ids := make([]string, len(sorted))
	for i := range sorted {
		ids[i] = sorted[i].ID
	}
	return ids
}

func mapRoomRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return &RoomInUseError{}
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError("capacity", "capacity must be positive")
	}
	return fmt.Errorf("room repository: %w", err)
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
