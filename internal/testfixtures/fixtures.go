package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/persistence"
	"github.com/example/meeting-checkin/internal/scheduler"
)

var (
	userCounter    uint64
	roomCounter    uint64
	meetingCounter uint64
	sessionCounter uint64
)

// Zone is the fixed +09:00 zone fixtures use for meeting dates and clocks.
var Zone = time.FixedZone("JST", 9*60*60)

var referenceTime = time.Date(2025, time.April, 1, 9, 0, 0, 0, Zone)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate is the calendar date of ReferenceTime.
func ReferenceDate() scheduler.Date {
	return scheduler.DateOf(referenceTime)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	ExternalID   string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture. The external ID ends in
// a four digit sequence number so that check-in digits are predictable.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		ExternalID:   fmt.Sprintf("EMP-%04d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) { f.DisplayName = name }
}

// WithUserExternalID overrides the identifier used for check-in matching.
func WithUserExternalID(externalID string) UserOption {
	return func(f *UserFixture) { f.ExternalID = externalID }
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithUserAdmin toggles administrator privileges.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) { f.IsAdmin = isAdmin }
}

// Application converts the fixture into an application.User.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		ExternalID:  f.ExternalID,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Principal returns the principal acting as this user.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence converts the fixture into a persistence.User.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		ExternalID:   f.ExternalID,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  fmt.Sprintf("%dF", idx%20+1),
		Capacity:  8,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

// WithRoomFacilities sets the facilities description.
func WithRoomFacilities(facilities string) RoomOption {
	return func(f *RoomFixture) { f.Facilities = &facilities }
}

// Application converts the fixture into an application.Room.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence.Room.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as room service input.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: copyStringPtr(f.Facilities),
	}
}

// ---------------------------- Meeting fixtures ----------------------------

// ParticipantFixture is one roster line of a MeetingFixture.
type ParticipantFixture struct {
	ID         string
	UserID     string
	Role       scheduler.Role
	Attendance scheduler.Attendance
}

// MeetingFixture represents a deterministic meeting with its roster.
type MeetingFixture struct {
	ID           string
	Title        string
	Description  string
	RoomID       string
	OrganizerID  string
	Date         scheduler.Date
	Start        scheduler.TimeOfDay
	End          scheduler.TimeOfDay
	Status       scheduler.Status
	Participants []ParticipantFixture
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*MeetingFixture)

// NewMeetingFixture returns a draft meeting from 10:00 to 11:00 on ReferenceDate.
func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	fixture := MeetingFixture{
		ID:        fmt.Sprintf("meeting-%03d", idx),
		Title:     fmt.Sprintf("Meeting %03d", idx),
		Date:      ReferenceDate(),
		Start:     scheduler.NewTimeOfDay(10, 0, 0),
		End:       scheduler.NewTimeOfDay(11, 0, 0),
		Status:    scheduler.StatusDraft,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMeetingID overrides the generated meeting ID.
func WithMeetingID(id string) MeetingOption {
	return func(f *MeetingFixture) { f.ID = id }
}

// WithMeetingRoom sets the booked room.
func WithMeetingRoom(roomID string) MeetingOption {
	return func(f *MeetingFixture) { f.RoomID = roomID }
}

// WithMeetingOrganizer sets the organizer.
func WithMeetingOrganizer(userID string) MeetingOption {
	return func(f *MeetingFixture) { f.OrganizerID = userID }
}

// WithMeetingStatus overrides the lifecycle status.
func WithMeetingStatus(status scheduler.Status) MeetingOption {
	return func(f *MeetingFixture) { f.Status = status }
}

// WithMeetingWindow sets the date and times from HH:MM strings.
func WithMeetingWindow(date scheduler.Date, start, end string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Date = date
		f.Start = mustTimeOfDay(start)
		f.End = mustTimeOfDay(end)
	}
}

// WithMeetingParticipant appends an invited roster entry. Participant IDs are
// derived from the meeting ID and roster position.
func WithMeetingParticipant(userID string, role scheduler.Role) MeetingOption {
	return func(f *MeetingFixture) {
		f.Participants = append(f.Participants, ParticipantFixture{
			ID:         fmt.Sprintf("%s-p%d", f.ID, len(f.Participants)+1),
			UserID:     userID,
			Role:       role,
			Attendance: scheduler.AttendanceInvited,
		})
	}
}

// Application converts the fixture into an application.Meeting.
func (f MeetingFixture) Application() application.Meeting {
	m := application.Meeting{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		RoomID:      f.RoomID,
		OrganizerID: f.OrganizerID,
		Date:        f.Date,
		StartTime:   f.Start,
		EndTime:     f.End,
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, p := range f.Participants {
		m.Participants = append(m.Participants, application.Participant{
			ID:               p.ID,
			MeetingID:        f.ID,
			UserID:           p.UserID,
			Role:             p.Role,
			AttendanceStatus: p.Attendance,
		})
	}
	return m
}

// Persistence converts the fixture into a persistence.Meeting.
func (f MeetingFixture) Persistence() persistence.Meeting {
	m := persistence.Meeting{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		RoomID:      f.RoomID,
		OrganizerID: f.OrganizerID,
		Date:        string(f.Date),
		StartTime:   int(f.Start),
		EndTime:     int(f.End),
		Status:      string(f.Status),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for i, p := range f.Participants {
		m.Participants = append(m.Participants, persistence.Participant{
			ID:               p.ID,
			MeetingID:        f.ID,
			UserID:           p.UserID,
			Role:             string(p.Role),
			AttendanceStatus: string(p.Attendance),
			Position:         i,
		})
	}
	return m
}

// Input returns the fixture as meeting service input.
func (f MeetingFixture) Input() application.MeetingInput {
	input := application.MeetingInput{
		Title:       f.Title,
		Description: f.Description,
		RoomID:      f.RoomID,
		Date:        string(f.Date),
		StartTime:   f.Start.String(),
		EndTime:     f.End.String(),
		Status:      f.Status,
	}
	for _, p := range f.Participants {
		input.Participants = append(input.Participants, application.ParticipantInput{UserID: p.UserID, Role: p.Role})
	}
	return input
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic authentication session.
type SessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session valid for a day after ReferenceTime.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(24 * time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUserID overrides the owning user.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) { f.UserID = id }
}

// WithSessionToken overrides the session token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) { f.Token = token }
}

// WithSessionExpiresAt overrides the expiry.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) { f.ExpiresAt = t }
}

// WithSessionRevokedAt marks the session as revoked.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) { f.RevokedAt = &t }
}

// Application converts the fixture into an application.Session.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

// Persistence converts the fixture into a persistence.Session.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

func mustTimeOfDay(s string) scheduler.TimeOfDay {
	t, err := scheduler.ParseTimeOfDay(s)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: invalid time of day %q: %v", s, err))
	}
	return t
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
