package application

import (
	"time"

	"github.com/example/meeting-checkin/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// Meeting is a room booking moving through the lifecycle state machine.
type Meeting struct {
	ID          string
	Title       string
	Description string
	RoomID      string
	OrganizerID string
	Date        scheduler.Date
	StartTime   scheduler.TimeOfDay
	EndTime     scheduler.TimeOfDay
	Status      scheduler.Status
	// CheckinToken is empty when no token is stored. Only CheckinTokenService writes it.
	CheckinToken          string
	CheckinTokenExpiresAt *time.Time
	Participants          []Participant
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Window returns the room slot the meeting occupies.
func (m Meeting) Window() scheduler.Window {
	return scheduler.Window{RoomID: m.RoomID, Date: m.Date, Start: m.StartTime, End: m.EndTime}
}

// Booking returns the meeting as an entry on its room calendar.
func (m Meeting) Booking() scheduler.Booking {
	return scheduler.Booking{
		MeetingID: m.ID,
		RoomID:    m.RoomID,
		Date:      m.Date,
		Start:     m.StartTime,
		End:       m.EndTime,
		Status:    m.Status,
	}
}

// Participant is one roster entry. Roster order is significant for check-in matching.
type Participant struct {
	ID               string
	MeetingID        string
	UserID           string
	Role             scheduler.Role
	AttendanceStatus scheduler.Attendance
	CheckInTime      *scheduler.TimeOfDay
}

// ParticipantInput is a roster entry submitted on create or edit.
type ParticipantInput struct {
	UserID string
	Role   scheduler.Role
}

// MeetingInput captures caller provided meeting fields. Date is YYYY-MM-DD and
// the times are HH:MM or HH:MM:SS, validated by the service.
type MeetingInput struct {
	Title        string
	Description  string
	RoomID       string
	Date         string
	StartTime    string
	EndTime      string
	Status       scheduler.Status
	Participants []ParticipantInput
}

// CreateMeetingParams wraps the data required to create a meeting.
type CreateMeetingParams struct {
	Principal Principal
	Input     MeetingInput
}

// UpdateMeetingParams wraps the data required to edit a meeting.
type UpdateMeetingParams struct {
	Principal Principal
	MeetingID string
	Input     MeetingInput
}

// UpdateStatusParams wraps a generic status change.
type UpdateStatusParams struct {
	Principal Principal
	MeetingID string
	Status    scheduler.Status
}

// AttendanceEntry is one roster line of an attendance sheet.
type AttendanceEntry struct {
	ParticipantID    string
	UserID           string
	DisplayName      string
	Role             scheduler.Role
	AttendanceStatus scheduler.Attendance
	CheckInTime      *scheduler.TimeOfDay
}

// AttendanceSheet is the data handed to document renderers.
type AttendanceSheet struct {
	Meeting Meeting
	Room    Room
	Entries []AttendanceEntry
}

// GenerateTokenParams wraps a check-in token request.
type GenerateTokenParams struct {
	Principal       Principal
	MeetingID       string
	DurationMinutes int
}

// CheckinToken is a freshly issued token.
type CheckinToken struct {
	MeetingID string
	Token     string
	ExpiresAt time.Time
}

// TokenStatus describes a meeting's stored token as seen by an authenticated caller.
type TokenStatus struct {
	Active           bool
	Expired          bool
	Token            string
	ExpiresAt        *time.Time
	RemainingSeconds int
}

// CheckInOutcome is the result category of a public check-in.
type CheckInOutcome string

const (
	CheckInSuccess          CheckInOutcome = "success"
	CheckInAlreadyCheckedIn CheckInOutcome = "already_checked_in"
	CheckInNoMatch          CheckInOutcome = "no_match"
	CheckInTokenInvalid     CheckInOutcome = "token_invalid"
	CheckInAmbiguousMatch   CheckInOutcome = "ambiguous_match"
)

// CheckInParams is the anonymous check-in form.
type CheckInParams struct {
	Token  string
	Digits string
}

// CheckInResult reports the outcome. ParticipantName is set only on success.
type CheckInResult struct {
	Outcome         CheckInOutcome
	ParticipantName string
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name       string
	Location   string
	Capacity   int
	Facilities *string
}

// Room represents a catalog entry for a physical meeting room.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// UserInput captures caller provided user attributes. An empty Password on
// update keeps the stored hash.
type UserInput struct {
	Email       string
	DisplayName string
	ExternalID  string
	Password    string
	IsAdmin     bool
}

// User represents an account exposed by the application services.
// ExternalID is the identifier whose trailing digits are used for check-in.
type User struct {
	ID          string
	Email       string
	DisplayName string
	ExternalID  string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
