package persistence

import "time"

// User represents an account known to the scheduler.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	ExternalID   string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room represents a bookable meeting room.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Meeting is a stored meeting row. Date is YYYY-MM-DD; StartTime and EndTime
// are seconds since midnight.
type Meeting struct {
	ID                    string
	Title                 string
	Description           string
	RoomID                string
	OrganizerID           string
	Date                  string
	StartTime             int
	EndTime               int
	Status                string
	CheckinToken          *string
	CheckinTokenExpiresAt *time.Time
	Participants          []Participant
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Participant is a roster row owned by a meeting. Position keeps roster order.
type Participant struct {
	ID               string
	MeetingID        string
	UserID           string
	Role             string
	AttendanceStatus string
	CheckInTime      *int
	Position         int
}

// Session represents an authentication session persisted for a user.
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
