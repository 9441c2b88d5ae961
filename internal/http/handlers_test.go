package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/scheduler"
)

type routerFixture struct {
	handler    http.Handler
	validator  *fakeSessionValidator
	auth       *stubAuthService
	users      *stubUserService
	rooms      *stubRoomService
	meetings   *stubMeetingService
	tokens     *stubTokenService
	attendance *stubAttendanceService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	checkIn := scheduler.NewTimeOfDay(10, 2, 15)
	meeting := application.Meeting{
		ID:          "m-1",
		Title:       "Weekly sync",
		RoomID:      "room-1",
		OrganizerID: "u-org",
		Date:        scheduler.Date("2025-04-01"),
		StartTime:   scheduler.NewTimeOfDay(10, 0, 0),
		EndTime:     scheduler.NewTimeOfDay(11, 0, 0),
		Status:      scheduler.StatusScheduled,
		Participants: []application.Participant{
			{ID: "p-1", UserID: "u-mod", Role: scheduler.RoleModerator, AttendanceStatus: scheduler.AttendanceAttended, CheckInTime: &checkIn},
		},
	}

	f := &routerFixture{
		validator: &fakeSessionValidator{principal: application.Principal{UserID: "u-org"}},
		auth:      &stubAuthService{},
		users: &stubUserService{
			list: func(application.Principal) ([]application.User, error) { return nil, application.ErrUnauthorized },
		},
		rooms:      &stubRoomService{rooms: []application.Room{{ID: "room-1", Name: "Kaede", Capacity: 8}}},
		meetings:   &stubMeetingService{meeting: meeting},
		tokens:     &stubTokenService{},
		attendance: &stubAttendanceService{},
	}

	logger := discardLogger()
	f.handler = NewRouter(RouterConfig{
		Auth:             NewAuthHandler(f.auth, logger),
		Users:            NewUserHandler(f.users, logger),
		Rooms:            NewRoomHandler(f.rooms, logger),
		Meetings:         NewMeetingHandler(f.meetings, logger),
		Checkin:          NewCheckinHandler(f.tokens, f.attendance, logger),
		SessionValidator: f.validator,
		RateLimiter:      NewLocalRateLimiter(1, 3, time.Minute),
		Logger:           logger,
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer session-1")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		expires := time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC)
		f.auth.authenticate = func(p application.AuthenticateParams) (application.AuthenticateResult, error) {
			if p.Email != "alice@example.com" || p.Password != "secret-pass" {
				t.Fatalf("unexpected params: %+v", p)
			}
			return application.AuthenticateResult{
				User:    application.User{ID: "u-1", Email: p.Email, DisplayName: "Alice"},
				Session: application.Session{Token: "tok-1", ExpiresAt: expires},
			}, nil
		}

		rec := f.do(t, http.MethodPost, "/auth/login", `{"email":" Alice@Example.com ","password":"secret-pass"}`, false)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Session-Token") != "tok-1" {
			t.Fatal("expected session token header")
		}
		if cookie := rec.Result().Cookies(); len(cookie) != 1 || cookie[0].Value != "tok-1" || !cookie[0].HttpOnly {
			t.Fatalf("unexpected cookies: %+v", cookie)
		}
		body := decodeBody[loginResponse](t, rec)
		if body.Token != "tok-1" || body.ExpiresAt != "2025-04-01T18:00:00Z" || body.User.DisplayName != "Alice" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("invalid credentials map to 401", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.auth.authenticate = func(application.AuthenticateParams) (application.AuthenticateResult, error) {
			return application.AuthenticateResult{}, application.ErrInvalidCredentials
		}

		rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"x"}`, false)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("logout revokes the session and clears the cookie", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodPost, "/auth/logout", "", true)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(f.auth.revoked) != 1 || f.auth.revoked[0] != "session-1" {
			t.Fatalf("unexpected revocations: %v", f.auth.revoked)
		}
		if cookies := rec.Result().Cookies(); len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected clearing cookie, got %+v", cookies)
		}
	})

	t.Run("refresh reports expired sessions", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.auth.refresh = func(string) (application.Session, error) { return application.Session{}, application.ErrSessionExpired }

		rec := f.do(t, http.MethodPost, "/auth/refresh", "", true)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.ErrorCode != "AUTH_SESSION_EXPIRED" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})
}

func TestUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("require administrator authorization", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodGet, "/users", "", true)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("return localized validation errors with wire field names", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.users.create = func(p application.CreateUserParams) (application.User, error) {
			if p.Input.ExternalID != "EMP-0042" || p.Input.Password != "long-enough" {
				t.Fatalf("unexpected input: %+v", p.Input)
			}
			return application.User{}, &application.ValidationError{FieldErrors: map[string]string{
				"display_name": "display name is required",
			}}
		}

		rec := f.do(t, http.MethodPost, "/users", `{"email":"b@example.com","externalId":"EMP-0042","password":"long-enough"}`, true)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		body := decodeBody[errorResponse](t, rec)
		if body.Errors["displayName"] != "表示名は必須です。" {
			t.Fatalf("unexpected errors: %+v", body.Errors)
		}
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list rooms for any principal", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodGet, "/rooms", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body := decodeBody[listRoomsResponse](t, rec); len(body.Rooms) != 1 || body.Rooms[0].Name != "Kaede" {
			t.Fatalf("unexpected rooms: %+v", body)
		}
	})

	t.Run("missing room maps to 404", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		if rec := f.do(t, http.MethodGet, "/rooms/none", "", true); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("room calendar passes the date through", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodGet, "/rooms/room-1/meetings?date=2025-04-01", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(f.meetings.roomDays) != 1 || f.meetings.roomDays[0] != "room-1@2025-04-01" {
			t.Fatalf("unexpected calls: %v", f.meetings.roomDays)
		}
	})

	t.Run("deleting a booked room lists the meetings", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.rooms.err = &application.RoomInUseError{RoomID: "room-1", MeetingIDs: []string{"m-1", "m-2"}}

		rec := f.do(t, http.MethodDelete, "/rooms/room-1", "", true)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		body := decodeBody[errorResponse](t, rec)
		if body.ErrorCode != "ROOM_IN_USE" || len(body.MeetingIDs) != 2 || body.MeetingIDs[1] != "m-2" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})
}

func TestMeetingHandlers(t *testing.T) {
	t.Parallel()

	t.Run("requires a session", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		if rec := f.do(t, http.MethodGet, "/meetings/m-1", "", false); rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("serializes meetings in camelCase", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodGet, "/meetings/m-1", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		raw := rec.Body.String()
		for _, want := range []string{`"roomId":"room-1"`, `"startTime":"10:00"`, `"checkInTime":"10:02:15"`, `"attendanceStatus":"attended"`} {
			if !strings.Contains(raw, want) {
				t.Fatalf("expected %s in %s", want, raw)
			}
		}
	})

	t.Run("create forwards the roster", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		body := `{"title":" Sync ","roomId":"room-1","date":"2025-04-01","startTime":"10:00","endTime":"11:00","status":"scheduled",
			"participants":[{"userId":"u-mod","role":"moderator"},{"userId":"u-att","role":"participant"}]}`
		rec := f.do(t, http.MethodPost, "/meetings", body, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		input := f.meetings.created[0]
		if input.Title != "Sync" || input.Status != scheduler.StatusScheduled || len(input.Participants) != 2 || input.Participants[1].Role != scheduler.RoleParticipant {
			t.Fatalf("unexpected input: %+v", input)
		}
	})

	t.Run("conflicts report the blocking meeting", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.meetings.err = &application.ConflictError{Conflict: scheduler.Conflict{
			WithMeetingID: "m-9",
			RoomID:        "room-1",
			Date:          "2025-04-01",
			Start:         scheduler.NewTimeOfDay(9, 30, 0),
			End:           scheduler.NewTimeOfDay(10, 30, 0),
			Status:        scheduler.StatusOngoing,
		}}

		rec := f.do(t, http.MethodPost, "/meetings/m-1/schedule", "", true)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		body := decodeBody[errorResponse](t, rec)
		if body.ErrorCode != "ROOM_CONFLICT" || body.Conflict == nil || body.Conflict.WithMeetingID != "m-9" || body.Conflict.StartTime != "09:30" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("guard rejections map to 409 with detail", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.meetings.err = &application.GuardError{Operation: "start", Status: scheduler.StatusScheduled, Reason: "start window opens at 09:30", Err: application.ErrStartTooEarly}

		rec := f.do(t, http.MethodPost, "/meetings/m-1/start", "", true)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		body := decodeBody[errorResponse](t, rec)
		if body.ErrorCode != "TRANSITION_REJECTED" || body.Guard == nil || body.Guard.Operation != "start" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("role rejections map to 403", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.meetings.err = &application.GuardError{Operation: "complete", Status: scheduler.StatusOngoing, Reason: "moderator only", Err: application.ErrUnauthorized}

		if rec := f.do(t, http.MethodPost, "/meetings/m-1/complete", "", true); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("transition endpoints dispatch by path", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		for _, op := range []string{"schedule", "start", "complete", "cancel"} {
			if rec := f.do(t, http.MethodPost, "/meetings/m-1/"+op, "", true); rec.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d", op, rec.Code)
			}
		}
		if len(f.meetings.calls) != 4 || f.meetings.calls[3].op != "cancel" || f.meetings.calls[0].principal.UserID != "u-org" {
			t.Fatalf("unexpected calls: %+v", f.meetings.calls)
		}
	})

	t.Run("generic status update", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodPut, "/meetings/m-1/status", `{"status":"cancelled"}`, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(f.meetings.statuses) != 1 || f.meetings.statuses[0].Status != scheduler.StatusCancelled {
			t.Fatalf("unexpected status calls: %+v", f.meetings.statuses)
		}
	})

	t.Run("delete answers 204", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		if rec := f.do(t, http.MethodDelete, "/meetings/m-1", "", true); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("attendance sheet", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		at := scheduler.NewTimeOfDay(10, 2, 15)
		f.meetings.sheet = application.AttendanceSheet{
			Meeting: f.meetings.meeting,
			Room:    application.Room{ID: "room-1", Name: "Kaede"},
			Entries: []application.AttendanceEntry{
				{ParticipantID: "p-1", UserID: "u-mod", DisplayName: "Moderator", Role: scheduler.RoleModerator, AttendanceStatus: scheduler.AttendanceAttended, CheckInTime: &at},
				{ParticipantID: "p-2", UserID: "u-att", DisplayName: "Attendee", Role: scheduler.RoleParticipant, AttendanceStatus: scheduler.AttendanceAbsent},
			},
		}

		rec := f.do(t, http.MethodGet, "/meetings/m-1/attendance", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[attendanceSheetDTO](t, rec)
		if len(body.Entries) != 2 || *body.Entries[0].CheckInTime != "10:02:15" || body.Entries[1].CheckInTime != nil {
			t.Fatalf("unexpected sheet: %+v", body)
		}
	})
}

func TestCheckinHandlers(t *testing.T) {
	t.Parallel()

	t.Run("token generation forwards the duration", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.tokens.issued = application.CheckinToken{MeetingID: "m-1", Token: "abc", ExpiresAt: time.Date(2025, 4, 1, 1, 10, 0, 0, time.UTC)}

		rec := f.do(t, http.MethodPost, "/meetings/m-1/checkin-token", `{"durationMinutes":10}`, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if len(f.tokens.durations) != 1 || f.tokens.durations[0] != 10 {
			t.Fatalf("unexpected durations: %v", f.tokens.durations)
		}
		if body := decodeBody[tokenResponse](t, rec); body.Token != "abc" || body.ExpiresAt != "2025-04-01T01:10:00Z" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("oversized token request is rejected before the service", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		body := `{"durationMinutes":10,"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
		rec := f.do(t, http.MethodPost, "/meetings/m-1/checkin-token", body, true)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if len(f.tokens.durations) != 0 {
			t.Fatalf("service must not be called, got durations %v", f.tokens.durations)
		}
	})

	t.Run("token status without a token", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		rec := f.do(t, http.MethodGet, "/meetings/m-1/checkin-token", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"active":false`) || !strings.Contains(rec.Body.String(), `"expiresAt":null`) {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("invalidate answers 204", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)

		if rec := f.do(t, http.MethodDelete, "/meetings/m-1/checkin-token", "", true); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(f.tokens.invalidated) != 1 {
			t.Fatal("expected invalidation call")
		}
	})

	t.Run("public check-in answers 200 with outcome", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.attendance.result = application.CheckInResult{Outcome: application.CheckInSuccess, ParticipantName: "Moderator"}

		rec := f.do(t, http.MethodPost, "/checkin", `{"token":"abc","last4Digits":"1234"}`, false)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[checkInResponse](t, rec)
		if body.Outcome != "success" || body.ParticipantName != "Moderator" {
			t.Fatalf("unexpected body: %+v", body)
		}
		if got := f.attendance.params[0]; got.Token != "abc" || got.Digits != "1234" {
			t.Fatalf("unexpected params: %+v", got)
		}
		if len(f.validator.tokens) != 0 {
			t.Fatal("public check-in must not consult the session validator")
		}
	})

	t.Run("token invalid is still 200", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.attendance.result = application.CheckInResult{Outcome: application.CheckInTokenInvalid}

		rec := f.do(t, http.MethodPost, "/checkin", `{"token":"gone","last4Digits":"1234"}`, false)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"outcome":"token_invalid"`) {
			t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "participantName") {
			t.Fatal("participantName must be omitted unless check-in succeeded")
		}
	})

	t.Run("malformed digits map to 422", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.attendance.err = &application.ValidationError{FieldErrors: map[string]string{"last4Digits": "exactly 4 digits are required"}}

		rec := f.do(t, http.MethodPost, "/checkin", `{"token":"abc","last4Digits":"12a4"}`, false)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.Errors["last4Digits"] != "数字 4 桁を入力してください。" {
			t.Fatalf("unexpected errors: %+v", body.Errors)
		}
	})

	t.Run("throttles repeated attempts", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t)
		f.attendance.result = application.CheckInResult{Outcome: application.CheckInNoMatch}

		var last *httptest.ResponseRecorder
		for i := 0; i < 4; i++ {
			last = f.do(t, http.MethodPost, "/checkin", `{"token":"abc","last4Digits":"0000"}`, false)
		}
		if last.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 after burst, got %d", last.Code)
		}
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/healthz", "", false); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
