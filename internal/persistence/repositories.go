package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// MeetingFilter narrows meeting listings.
type MeetingFilter struct {
	RoomID   string
	Date     string
	Statuses []string
}

// StatusChange is a compare-and-set on a meeting's status.
type StatusChange struct {
	MeetingID string
	From      string
	To        string
	// MarkAbsent forces every non-attended participant to absent in the same write.
	MarkAbsent bool
	// GuardOverlap re-checks the room window against blocking meetings in the same write.
	GuardOverlap bool
	UpdatedAt    time.Time
}

// MeetingRepository stores meetings, their rosters and their check-in tokens.
//
// Writes that set a blocking status (scheduled, ongoing) must fail with an
// *OverlapError when another blocking meeting holds an overlapping window in
// the same room and date, and must evaluate that inside the write.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	// UpdateMeeting rewrites the meeting's fields and replaces its whole roster.
	// The write only applies while the stored status is one of expectStatuses.
	UpdateMeeting(ctx context.Context, meeting Meeting, expectStatuses []string) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
	DeleteMeeting(ctx context.Context, id string, expectStatuses []string) error
	UpdateStatus(ctx context.Context, change StatusChange) (Meeting, error)

	// ReplaceCheckinToken stores token as the meeting's only token, provided
	// the meeting is in requiredStatus.
	ReplaceCheckinToken(ctx context.Context, meetingID, token string, expiresAt time.Time, requiredStatus string) error
	ClearCheckinToken(ctx context.Context, meetingID string) error
	// GetMeetingByActiveToken returns the ongoing meeting owning token when now is before its expiry.
	GetMeetingByActiveToken(ctx context.Context, token string, now time.Time) (Meeting, error)
	// MarkAttended flips a participant to attended. It reports false without
	// writing when the participant is already attended.
	MarkAttended(ctx context.Context, participantID string, checkInTime int) (bool, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
