// Package adapters bridges persistence repositories to the ports consumed by
// the application services.
package adapters

import (
	"context"
	"time"

	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/persistence"
	"github.com/example/meeting-checkin/internal/scheduler"
)

// UserRepository adapts persistence users to application.UserRepository,
// application.UserDirectory and application.CredentialStore.
type UserRepository struct {
	repo persistence.UserRepository
}

// NewUserRepository wraps repo.
func NewUserRepository(repo persistence.UserRepository) *UserRepository {
	return &UserRepository{repo: repo}
}

func (a *UserRepository) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *UserRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored hash when passwordHash is nil.
func (a *UserRepository) UpdateUser(ctx context.Context, user application.User, passwordHash *string) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	hash := current.PasswordHash
	if passwordHash != nil {
		hash = *passwordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, hash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *UserRepository) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *UserRepository) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// LookupUsers resolves ids in one query. Unknown ids are absent from the map.
func (a *UserRepository) LookupUsers(ctx context.Context, ids []string) (map[string]application.User, error) {
	out := make(map[string]application.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	models, err := a.repo.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, model := range models {
		out[model.ID] = toApplicationUser(model)
	}
	return out, nil
}

func (a *UserRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

// RoomRepository adapts persistence rooms to application.RoomRepository and
// application.RoomCatalog.
type RoomRepository struct {
	repo persistence.RoomRepository
}

// NewRoomRepository wraps repo.
func NewRoomRepository(repo persistence.RoomRepository) *RoomRepository {
	return &RoomRepository{repo: repo}
}

func (a *RoomRepository) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *RoomRepository) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *RoomRepository) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

// MeetingRepository adapts persistence meetings to application.MeetingRepository,
// application.CheckinTokenStore and application.AttendanceStore.
type MeetingRepository struct {
	repo persistence.MeetingRepository
}

// NewMeetingRepository wraps repo.
func NewMeetingRepository(repo persistence.MeetingRepository) *MeetingRepository {
	return &MeetingRepository{repo: repo}
}

func (a *MeetingRepository) CreateMeeting(ctx context.Context, meeting application.Meeting) (application.Meeting, error) {
	if err := a.repo.CreateMeeting(ctx, toPersistenceMeeting(meeting)); err != nil {
		return application.Meeting{}, err
	}
	return a.GetMeeting(ctx, meeting.ID)
}

func (a *MeetingRepository) UpdateMeeting(ctx context.Context, meeting application.Meeting, expect []scheduler.Status) (application.Meeting, error) {
	if err := a.repo.UpdateMeeting(ctx, toPersistenceMeeting(meeting), statusStrings(expect)); err != nil {
		return application.Meeting{}, err
	}
	return a.GetMeeting(ctx, meeting.ID)
}

func (a *MeetingRepository) GetMeeting(ctx context.Context, id string) (application.Meeting, error) {
	stored, err := a.repo.GetMeeting(ctx, id)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *MeetingRepository) ListRoomMeetings(ctx context.Context, roomID string) ([]application.Meeting, error) {
	models, err := a.repo.ListMeetings(ctx, persistence.MeetingFilter{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	meetings := make([]application.Meeting, len(models))
	for i := range models {
		meetings[i] = toApplicationMeeting(models[i])
	}
	return meetings, nil
}

func (a *MeetingRepository) ListRoomDay(ctx context.Context, roomID string, date scheduler.Date, statuses ...scheduler.Status) ([]application.Meeting, error) {
	filter := persistence.MeetingFilter{RoomID: roomID, Date: string(date)}
	for _, status := range statuses {
		filter.Statuses = append(filter.Statuses, string(status))
	}
	models, err := a.repo.ListMeetings(ctx, filter)
	if err != nil {
		return nil, err
	}
	meetings := make([]application.Meeting, 0, len(models))
	for _, model := range models {
		meetings = append(meetings, toApplicationMeeting(model))
	}
	return meetings, nil
}

func (a *MeetingRepository) DeleteMeeting(ctx context.Context, id string, expect []scheduler.Status) error {
	return a.repo.DeleteMeeting(ctx, id, statusStrings(expect))
}

func (a *MeetingRepository) UpdateStatus(ctx context.Context, change application.StatusChange) (application.Meeting, error) {
	stored, err := a.repo.UpdateStatus(ctx, persistence.StatusChange{
		MeetingID:    change.MeetingID,
		From:         string(change.From),
		To:           string(change.To),
		MarkAbsent:   change.MarkAbsent,
		GuardOverlap: change.GuardOverlap,
		UpdatedAt:    change.UpdatedAt,
	})
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *MeetingRepository) ReplaceCheckinToken(ctx context.Context, meetingID, token string, expiresAt time.Time, required scheduler.Status) error {
	return a.repo.ReplaceCheckinToken(ctx, meetingID, token, expiresAt, string(required))
}

func (a *MeetingRepository) ClearCheckinToken(ctx context.Context, meetingID string) error {
	return a.repo.ClearCheckinToken(ctx, meetingID)
}

func (a *MeetingRepository) GetMeetingByActiveToken(ctx context.Context, token string, now time.Time) (application.Meeting, error) {
	stored, err := a.repo.GetMeetingByActiveToken(ctx, token, now)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *MeetingRepository) MarkAttended(ctx context.Context, participantID string, checkInTime scheduler.TimeOfDay) (bool, error) {
	return a.repo.MarkAttended(ctx, participantID, int(checkInTime))
}

// SessionRepository adapts persistence sessions to application.SessionRepository.
type SessionRepository struct {
	repo persistence.SessionRepository
}

// NewSessionRepository wraps repo.
func NewSessionRepository(repo persistence.SessionRepository) *SessionRepository {
	return &SessionRepository{repo: repo}
}

func (a *SessionRepository) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

var (
	_ application.UserRepository    = (*UserRepository)(nil)
	_ application.UserDirectory     = (*UserRepository)(nil)
	_ application.CredentialStore   = (*UserRepository)(nil)
	_ application.RoomRepository    = (*RoomRepository)(nil)
	_ application.RoomCatalog       = (*RoomRepository)(nil)
	_ application.MeetingRepository = (*MeetingRepository)(nil)
	_ application.CheckinTokenStore = (*MeetingRepository)(nil)
	_ application.AttendanceStore   = (*MeetingRepository)(nil)
	_ application.SessionRepository = (*SessionRepository)(nil)
)
