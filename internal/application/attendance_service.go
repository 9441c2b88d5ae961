package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/meeting-checkin/internal/scheduler"
)

// TokenResolver maps an active check-in token to its meeting.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (Meeting, error)
}

// AttendanceStore flips one participant to attended.
type AttendanceStore interface {
	// MarkAttended reports false without writing when the participant is already attended.
	MarkAttended(ctx context.Context, participantID string, checkInTime scheduler.TimeOfDay) (bool, error)
}

// AttendanceServiceDeps bundles the collaborators of AttendanceService.
type AttendanceServiceDeps struct {
	Tokens     TokenResolver
	Attendance AttendanceStore
	Users      UserDirectory
	Now        func() time.Time
	// Location is the zone check-in times are recorded in. Defaults to Asia/Tokyo.
	Location *time.Location
	// RejectAmbiguous reports CheckInAmbiguousMatch instead of checking in the
	// first of several participants sharing the same trailing digits.
	RejectAmbiguous bool
	Metrics         MetricsRecorder
	Logger          *slog.Logger
}

// AttendanceService matches anonymous check-ins to roster entries by the
// trailing digits of their external identifier.
type AttendanceService struct {
	tokens          TokenResolver
	attendance      AttendanceStore
	users           UserDirectory
	now             func() time.Time
	location        *time.Location
	rejectAmbiguous bool
	metrics         MetricsRecorder
	logger          *slog.Logger
}

// NewAttendanceService wires dependencies for the attendance matcher.
func NewAttendanceService(deps AttendanceServiceDeps) *AttendanceService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = DefaultLocation()
	}
	return &AttendanceService{
		tokens:          deps.Tokens,
		attendance:      deps.Attendance,
		users:           deps.Users,
		now:             deps.Now,
		location:        deps.Location,
		rejectAmbiguous: deps.RejectAmbiguous,
		metrics:         defaultMetrics(deps.Metrics),
		logger:          defaultLogger(deps.Logger),
	}
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceService", operation, attrs...)
}

// CheckIn resolves the token, matches digits against the roster in order and
// marks the matched participant attended. Repeat calls report
// CheckInAlreadyCheckedIn. Only malformed digits and infrastructure failures
// return an error.
func (s *AttendanceService) CheckIn(ctx context.Context, params CheckInParams) (result CheckInResult, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.tokens == nil || s.attendance == nil {
		err = fmt.Errorf("attendance dependencies not configured")
		return
	}

	logger := s.loggerWith(ctx, "CheckIn")
	var meetingID string
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "check-in failed", "meeting_id", meetingID, "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.metrics.ObserveCheckIn(result.Outcome)
		logger.InfoContext(ctx, "check-in handled", "meeting_id", meetingID, "outcome", result.Outcome)
	}()

	digits := params.Digits
	if !scheduler.ValidCheckinDigits(digits) {
		err = newValidationError("last4Digits", fmt.Sprintf("exactly %d digits are required", scheduler.CheckinDigits))
		return
	}

	meeting, resolveErr := s.tokens.ResolveToken(ctx, params.Token)
	if resolveErr != nil {
		if errors.Is(resolveErr, ErrTokenInvalid) || errors.Is(resolveErr, ErrNotFound) {
			result = CheckInResult{Outcome: CheckInTokenInvalid}
			return
		}
		err = resolveErr
		return
	}
	meetingID = meeting.ID

	var users map[string]User
	if s.users != nil && len(meeting.Participants) > 0 {
		ids := make([]string, len(meeting.Participants))
		for i, p := range meeting.Participants {
			ids[i] = p.UserID
		}
		users, err = s.users.LookupUsers(ctx, ids)
		if err != nil {
			err = fmt.Errorf("lookup participants: %w", err)
			return
		}
	}

	roster := make([]scheduler.Candidate, len(meeting.Participants))
	for i, p := range meeting.Participants {
		roster[i] = scheduler.Candidate{ParticipantID: p.ID, Identifier: users[p.UserID].ExternalID}
	}

	matches := scheduler.MatchDigits(roster, digits)
	if len(matches) == 0 {
		result = CheckInResult{Outcome: CheckInNoMatch}
		return
	}
	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, idx := range matches {
			ids[i] = roster[idx].ParticipantID
		}
		logger.WarnContext(ctx, "check-in digits match several participants",
			"meeting_id", meeting.ID,
			"participant_ids", ids,
			"reject_ambiguous", s.rejectAmbiguous,
		)
		if s.rejectAmbiguous {
			result = CheckInResult{Outcome: CheckInAmbiguousMatch}
			return
		}
	}

	participant := meeting.Participants[matches[0]]
	if participant.AttendanceStatus == scheduler.AttendanceAttended {
		result = CheckInResult{Outcome: CheckInAlreadyCheckedIn}
		return
	}

	checkInTime := scheduler.TimeOfDayOf(s.now().In(s.location))
	var marked bool
	marked, err = s.attendance.MarkAttended(ctx, participant.ID, checkInTime)
	if err != nil {
		err = fmt.Errorf("mark attended: %w", err)
		return
	}
	if !marked {
		result = CheckInResult{Outcome: CheckInAlreadyCheckedIn}
		return
	}

	result = CheckInResult{Outcome: CheckInSuccess, ParticipantName: users[participant.UserID].DisplayName}
	return
}
