package http

import (
	"context"
	"io"
	"log/slog"

	"github.com/example/meeting-checkin/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionValidator struct {
	principal application.Principal
	err       error
	tokens    []string
}

func (f *fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	f.tokens = append(f.tokens, token)
	return f.principal, f.err
}

type stubAuthService struct {
	authenticate func(application.AuthenticateParams) (application.AuthenticateResult, error)
	refresh      func(token string) (application.Session, error)
	revoked      []string
	revokeErr    error
}

func (s *stubAuthService) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.authenticate(params)
}

func (s *stubAuthService) RefreshSession(ctx context.Context, token string) (application.Session, error) {
	return s.refresh(token)
}

func (s *stubAuthService) RevokeSession(ctx context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.revokeErr
}

type stubUserService struct {
	create func(application.CreateUserParams) (application.User, error)
	list   func(application.Principal) ([]application.User, error)
}

func (s *stubUserService) CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error) {
	return s.create(params)
}

func (s *stubUserService) UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error) {
	return application.User{ID: params.UserID, Email: params.Input.Email}, nil
}

func (s *stubUserService) DeleteUser(ctx context.Context, principal application.Principal, userID string) error {
	return nil
}

func (s *stubUserService) ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error) {
	return s.list(principal)
}

type stubRoomService struct {
	rooms []application.Room
	err   error
}

func (s *stubRoomService) CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error) {
	if s.err != nil {
		return application.Room{}, s.err
	}
	return application.Room{ID: "room-new", Name: params.Input.Name, Capacity: params.Input.Capacity}, nil
}

func (s *stubRoomService) GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error) {
	for _, room := range s.rooms {
		if room.ID == roomID {
			return room, nil
		}
	}
	return application.Room{}, application.ErrNotFound
}

func (s *stubRoomService) UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error) {
	return application.Room{ID: params.RoomID, Name: params.Input.Name}, s.err
}

func (s *stubRoomService) DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error {
	return s.err
}

func (s *stubRoomService) ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error) {
	return s.rooms, s.err
}

type transitionCall struct {
	op        string
	principal application.Principal
	meetingID string
}

type stubMeetingService struct {
	meeting   application.Meeting
	err       error
	created   []application.MeetingInput
	calls     []transitionCall
	statuses  []application.UpdateStatusParams
	roomDays  []string
	sheet     application.AttendanceSheet
	deleteErr error
}

func (s *stubMeetingService) record(op string, principal application.Principal, id string) (application.Meeting, error) {
	s.calls = append(s.calls, transitionCall{op: op, principal: principal, meetingID: id})
	if s.err != nil {
		return application.Meeting{}, s.err
	}
	return s.meeting, nil
}

func (s *stubMeetingService) CreateMeeting(ctx context.Context, params application.CreateMeetingParams) (application.Meeting, error) {
	s.created = append(s.created, params.Input)
	if s.err != nil {
		return application.Meeting{}, s.err
	}
	return s.meeting, nil
}

func (s *stubMeetingService) UpdateMeeting(ctx context.Context, params application.UpdateMeetingParams) (application.Meeting, error) {
	return s.record("update", params.Principal, params.MeetingID)
}

func (s *stubMeetingService) DeleteMeeting(ctx context.Context, principal application.Principal, meetingID string) error {
	s.calls = append(s.calls, transitionCall{op: "delete", principal: principal, meetingID: meetingID})
	return s.deleteErr
}

func (s *stubMeetingService) GetMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error) {
	return s.record("get", principal, meetingID)
}

func (s *stubMeetingService) ListRoomDay(ctx context.Context, principal application.Principal, roomID, date string) ([]application.Meeting, error) {
	s.roomDays = append(s.roomDays, roomID+"@"+date)
	if s.err != nil {
		return nil, s.err
	}
	return []application.Meeting{s.meeting}, nil
}

func (s *stubMeetingService) ScheduleMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error) {
	return s.record("schedule", principal, meetingID)
}

func (s *stubMeetingService) StartMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error) {
	return s.record("start", principal, meetingID)
}

func (s *stubMeetingService) CompleteMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error) {
	return s.record("complete", principal, meetingID)
}

func (s *stubMeetingService) CancelMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error) {
	return s.record("cancel", principal, meetingID)
}

func (s *stubMeetingService) UpdateStatus(ctx context.Context, params application.UpdateStatusParams) (application.Meeting, error) {
	s.statuses = append(s.statuses, params)
	if s.err != nil {
		return application.Meeting{}, s.err
	}
	return s.meeting, nil
}

func (s *stubMeetingService) AttendanceSheet(ctx context.Context, principal application.Principal, meetingID string) (application.AttendanceSheet, error) {
	if s.err != nil {
		return application.AttendanceSheet{}, s.err
	}
	return s.sheet, nil
}

type stubTokenService struct {
	issued      application.CheckinToken
	status      application.TokenStatus
	err         error
	durations   []int
	invalidated []string
}

func (s *stubTokenService) GenerateToken(ctx context.Context, params application.GenerateTokenParams) (application.CheckinToken, error) {
	s.durations = append(s.durations, params.DurationMinutes)
	if s.err != nil {
		return application.CheckinToken{}, s.err
	}
	return s.issued, nil
}

func (s *stubTokenService) GetStatus(ctx context.Context, principal application.Principal, meetingID string) (application.TokenStatus, error) {
	return s.status, s.err
}

func (s *stubTokenService) Invalidate(ctx context.Context, principal application.Principal, meetingID string) error {
	s.invalidated = append(s.invalidated, meetingID)
	return s.err
}

type stubAttendanceService struct {
	result application.CheckInResult
	err    error
	params []application.CheckInParams
}

func (s *stubAttendanceService) CheckIn(ctx context.Context, params application.CheckInParams) (application.CheckInResult, error) {
	s.params = append(s.params, params)
	return s.result, s.err
}
