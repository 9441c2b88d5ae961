package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/meeting-checkin/internal/persistence"
	"github.com/example/meeting-checkin/internal/scheduler"
)

const maxMeetingTitleLength = 200

// StatusChange is a compare-and-set status write with its side effects.
type StatusChange struct {
	MeetingID    string
	From         scheduler.Status
	To           scheduler.Status
	MarkAbsent   bool
	GuardOverlap bool
	UpdatedAt    time.Time
}

// MeetingRepository captures the persistence operations needed by the lifecycle controller.
// Writes into a blocking status must fail with *persistence.OverlapError when the
// room window is already held, and status writes with persistence.ErrStaleStatus
// when the stored status moved.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	UpdateMeeting(ctx context.Context, meeting Meeting, expect []scheduler.Status) (Meeting, error)
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	// ListRoomDay lists the room's meetings on date, restricted to statuses when given.
	ListRoomDay(ctx context.Context, roomID string, date scheduler.Date, statuses ...scheduler.Status) ([]Meeting, error)
	DeleteMeeting(ctx context.Context, id string, expect []scheduler.Status) error
	UpdateStatus(ctx context.Context, change StatusChange) (Meeting, error)
}

// RoomCatalog answers whether a room exists.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// UserDirectory resolves user records by ID. Unknown IDs are absent from the result.
type UserDirectory interface {
	LookupUsers(ctx context.Context, ids []string) (map[string]User, error)
}

// MeetingServiceDeps bundles the collaborators of MeetingService.
type MeetingServiceDeps struct {
	Meetings    MeetingRepository
	Rooms       RoomCatalog
	Users       UserDirectory
	Notifier    Notifier
	Metrics     MetricsRecorder
	IDGenerator func() string
	Now         func() time.Time
	// Location interprets meeting dates and times. Defaults to Asia/Tokyo.
	Location *time.Location
	Logger   *slog.Logger
}

// MeetingService drives meetings through their lifecycle and keeps room
// windows free of overlapping blocking meetings.
type MeetingService struct {
	meetings    MeetingRepository
	rooms       RoomCatalog
	users       UserDirectory
	notifier    Notifier
	metrics     MetricsRecorder
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	locks       *roomLocks
	logger      *slog.Logger
}

// NewMeetingService wires dependencies for the lifecycle controller.
func NewMeetingService(deps MeetingServiceDeps) *MeetingService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = DefaultLocation()
	}
	return &MeetingService{
		meetings:    deps.Meetings,
		rooms:       deps.Rooms,
		users:       deps.Users,
		notifier:    deps.Notifier,
		metrics:     defaultMetrics(deps.Metrics),
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		location:    deps.Location,
		locks:       newRoomLocks(),
		logger:      defaultLogger(deps.Logger),
	}
}

// DefaultLocation returns Asia/Tokyo, or a fixed +09:00 zone when tzdata is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

// CreateMeeting records a new meeting as draft or scheduled. The caller becomes its organizer.
func (s *MeetingService) CreateMeeting(ctx context.Context, params CreateMeetingParams) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateMeeting", "principal_id", params.Principal.UserID)
	defer func() {
		s.metrics.ObserveTransition("create", ErrorKind(err))
		if err != nil {
			logger.ErrorContext(ctx, "failed to create meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("meeting_id", meeting.ID, "status", meeting.Status).InfoContext(ctx, "meeting created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	var candidate Meeting
	candidate, err = s.buildMeeting(ctx, params.Input)
	if err != nil {
		return
	}
	now := s.now()
	candidate.ID = s.idGenerator()
	candidate.OrganizerID = params.Principal.UserID
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	s.assignParticipantIDs(&candidate)

	if scheduler.IsBlocking(candidate.Status) {
		release := s.locks.lock(candidate.RoomID, candidate.Date)
		defer release()
		if err = s.checkRoom(ctx, candidate); err != nil {
			return
		}
	}

	meeting, err = s.meetings.CreateMeeting(ctx, candidate)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	return
}

// UpdateMeeting edits a draft or cancelled meeting. The roster is replaced wholesale.
func (s *MeetingService) UpdateMeeting(ctx context.Context, params UpdateMeetingParams) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateMeeting",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
	)
	defer func() {
		s.metrics.ObserveTransition(string(scheduler.TransitionEdit), ErrorKind(err))
		if err != nil {
			logger.ErrorContext(ctx, "failed to update meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", meeting.Status).InfoContext(ctx, "meeting updated")
	}()

	var existing Meeting
	existing, err = s.load(ctx, params.MeetingID)
	if err != nil {
		return
	}
	if !canManage(existing, params.Principal) {
		err = roleGuard(string(scheduler.TransitionEdit), existing.Status, "only the organizer or an administrator may edit this meeting")
		return
	}
	if !scheduler.Allowed(scheduler.TransitionEdit, existing.Status) {
		err = statusGuard(scheduler.TransitionEdit, existing.Status)
		return
	}

	var candidate Meeting
	candidate, err = s.buildMeeting(ctx, params.Input)
	if err != nil {
		return
	}
	candidate.ID = existing.ID
	candidate.OrganizerID = existing.OrganizerID
	candidate.CheckinToken = existing.CheckinToken
	candidate.CheckinTokenExpiresAt = existing.CheckinTokenExpiresAt
	candidate.CreatedAt = existing.CreatedAt
	candidate.UpdatedAt = s.now()
	s.assignParticipantIDs(&candidate)

	if scheduler.IsBlocking(candidate.Status) {
		release := s.locks.lock(candidate.RoomID, candidate.Date)
		defer release()
		if err = s.checkRoom(ctx, candidate); err != nil {
			return
		}
	}

	meeting, err = s.meetings.UpdateMeeting(ctx, candidate, scheduler.AllowedFrom(scheduler.TransitionEdit))
	if err != nil {
		if errors.Is(err, persistence.ErrStaleStatus) {
			err = s.staleGuard(ctx, string(scheduler.TransitionEdit), existing)
			return
		}
		err = mapMeetingRepoError(err)
		return
	}
	return
}

// DeleteMeeting removes a draft or cancelled meeting and its roster.
func (s *MeetingService) DeleteMeeting(ctx context.Context, principal Principal, meetingID string) (err error) {
	if s == nil {
		return fmt.Errorf("MeetingService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteMeeting",
		"principal_id", principal.UserID,
		"meeting_id", meetingID,
	)
	defer func() {
		s.metrics.ObserveTransition(string(scheduler.TransitionDelete), ErrorKind(err))
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "meeting deleted")
	}()

	existing, err := s.load(ctx, meetingID)
	if err != nil {
		return err
	}
	if !canManage(existing, principal) {
		return roleGuard(string(scheduler.TransitionDelete), existing.Status, "only the organizer or an administrator may delete this meeting")
	}
	if !scheduler.Allowed(scheduler.TransitionDelete, existing.Status) {
		return statusGuard(scheduler.TransitionDelete, existing.Status)
	}

	if err = s.meetings.DeleteMeeting(ctx, meetingID, scheduler.AllowedFrom(scheduler.TransitionDelete)); err != nil {
		if errors.Is(err, persistence.ErrStaleStatus) {
			return s.staleGuard(ctx, string(scheduler.TransitionDelete), existing)
		}
		return mapMeetingRepoError(err)
	}
	return nil
}

// GetMeeting returns a meeting to any authenticated caller.
func (s *MeetingService) GetMeeting(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	if s == nil {
		return Meeting{}, fmt.Errorf("MeetingService is nil")
	}
	if principal.UserID == "" {
		return Meeting{}, ErrUnauthorized
	}
	return s.load(ctx, meetingID)
}

// ListRoomDay returns every meeting booked in a room on a date, ordered by start time.
func (s *MeetingService) ListRoomDay(ctx context.Context, principal Principal, roomID, date string) (meetings []Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListRoomDay",
		"principal_id", principal.UserID,
		"room_id", roomID,
		"date", date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list room day", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(meetings)).DebugContext(ctx, "room day listed")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	day, parseErr := scheduler.ParseDate(date)
	if parseErr != nil {
		err = newValidationError("date", "date must be YYYY-MM-DD")
		return
	}
	if s.rooms != nil {
		if _, err = s.rooms.GetRoom(ctx, roomID); err != nil {
			err = mapMeetingRepoError(err)
			return
		}
	}

	meetings, err = s.meetings.ListRoomDay(ctx, roomID, day)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}
	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].StartTime < meetings[j].StartTime
	})
	return
}

// ScheduleMeeting places a draft meeting on the room calendar.
func (s *MeetingService) ScheduleMeeting(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	return s.transition(ctx, "ScheduleMeeting", principal, meetingID, scheduler.TransitionSchedule)
}

// StartMeeting moves a meeting to ongoing. Only moderators may start, and not
// earlier than StartLeadTime before the scheduled start.
func (s *MeetingService) StartMeeting(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	return s.transition(ctx, "StartMeeting", principal, meetingID, scheduler.TransitionStart)
}

// CompleteMeeting finishes an ongoing meeting and marks every participant
// who did not check in as absent.
func (s *MeetingService) CompleteMeeting(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	return s.transition(ctx, "CompleteMeeting", principal, meetingID, scheduler.TransitionComplete)
}

// CancelMeeting cancels a draft or scheduled meeting.
func (s *MeetingService) CancelMeeting(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	return s.transition(ctx, "CancelMeeting", principal, meetingID, scheduler.TransitionCancel)
}

func (s *MeetingService) transition(ctx context.Context, operation string, principal Principal, meetingID string, op scheduler.Transition) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"meeting_id", meetingID,
	)
	defer func() {
		s.metrics.ObserveTransition(string(op), ErrorKind(err))
		if err != nil {
			logger.ErrorContext(ctx, "meeting transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", meeting.Status).InfoContext(ctx, "meeting transitioned")
	}()

	var current Meeting
	current, err = s.load(ctx, meetingID)
	if err != nil {
		return
	}

	switch op {
	case scheduler.TransitionStart, scheduler.TransitionComplete:
		if !HasRole(current, principal.UserID, scheduler.RoleModerator) {
			err = roleGuard(string(op), current.Status, fmt.Sprintf("only a moderator may %s this meeting", op))
			return
		}
	default:
		if !canManage(current, principal) {
			err = roleGuard(string(op), current.Status, fmt.Sprintf("only the organizer or an administrator may %s this meeting", op))
			return
		}
	}

	if !scheduler.Allowed(op, current.Status) {
		err = statusGuard(op, current.Status)
		return
	}
	if op == scheduler.TransitionStart {
		if err = s.checkStartWindow(current); err != nil {
			return
		}
	}

	target, _ := scheduler.Target(op)
	meeting, err = s.applyStatus(ctx, logger, string(op), current, target)
	return
}

// UpdateStatus sets any status on a meeting for its organizer or an administrator.
// Entering a blocking status re-checks the room, and completing marks absentees.
func (s *MeetingService) UpdateStatus(ctx context.Context, params UpdateStatusParams) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	const op = "update_status"
	logger := s.loggerWith(ctx, "UpdateStatus",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
		"target_status", params.Status,
	)
	defer func() {
		s.metrics.ObserveTransition(op, ErrorKind(err))
		if err != nil {
			logger.ErrorContext(ctx, "failed to update meeting status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", meeting.Status).InfoContext(ctx, "meeting status updated")
	}()

	if !params.Status.Valid() {
		err = newValidationError("status", "status must be one of draft, scheduled, ongoing, completed, cancelled")
		return
	}

	var current Meeting
	current, err = s.load(ctx, params.MeetingID)
	if err != nil {
		return
	}
	if !canManage(current, params.Principal) {
		err = roleGuard(op, current.Status, "only the organizer or an administrator may change the status of this meeting")
		return
	}
	if current.Status == params.Status {
		meeting = current
		return
	}

	meeting, err = s.applyStatus(ctx, logger, op, current, params.Status)
	return
}

// AttendanceSheet assembles the roster view used by document renderers.
func (s *MeetingService) AttendanceSheet(ctx context.Context, principal Principal, meetingID string) (sheet AttendanceSheet, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AttendanceSheet",
		"principal_id", principal.UserID,
		"meeting_id", meetingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build attendance sheet", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "attendance sheet built", "entries", len(sheet.Entries))
	}()

	var meeting Meeting
	meeting, err = s.load(ctx, meetingID)
	if err != nil {
		return
	}
	if !canView(meeting, principal) {
		err = ErrUnauthorized
		return
	}

	sheet.Meeting = meeting
	if s.rooms != nil {
		sheet.Room, err = s.rooms.GetRoom(ctx, meeting.RoomID)
		if err != nil {
			err = mapMeetingRepoError(err)
			return
		}
	}

	names := map[string]User{}
	if s.users != nil && len(meeting.Participants) > 0 {
		ids := make([]string, len(meeting.Participants))
		for i, p := range meeting.Participants {
			ids[i] = p.UserID
		}
		names, err = s.users.LookupUsers(ctx, ids)
		if err != nil {
			err = fmt.Errorf("lookup participants: %w", err)
			return
		}
	}

	sheet.Entries = make([]AttendanceEntry, len(meeting.Participants))
	for i, p := range meeting.Participants {
		sheet.Entries[i] = AttendanceEntry{
			ParticipantID:    p.ID,
			UserID:           p.UserID,
			DisplayName:      names[p.UserID].DisplayName,
			Role:             p.Role,
			AttendanceStatus: p.AttendanceStatus,
			CheckInTime:      p.CheckInTime,
		}
	}
	return
}

// applyStatus writes current -> target as a compare-and-set and notifies
// participants when the meeting starts or completes.
func (s *MeetingService) applyStatus(ctx context.Context, logger *slog.Logger, op string, current Meeting, target scheduler.Status) (Meeting, error) {
	change := StatusChange{
		MeetingID:    current.ID,
		From:         current.Status,
		To:           target,
		MarkAbsent:   target == scheduler.StatusCompleted,
		GuardOverlap: scheduler.Activates(current.Status, target),
		UpdatedAt:    s.now(),
	}

	updated, err := s.writeStatus(ctx, op, current, change)
	if err != nil {
		return Meeting{}, err
	}

	if target == scheduler.StatusOngoing || target == scheduler.StatusCompleted {
		notifyStatus(ctx, s.notifier, logger, updated, current.Status, change.UpdatedAt)
	}
	return updated, nil
}

// writeStatus holds the room lock across the conflict check and the write only.
func (s *MeetingService) writeStatus(ctx context.Context, op string, current Meeting, change StatusChange) (Meeting, error) {
	if change.GuardOverlap {
		release := s.locks.lock(current.RoomID, current.Date)
		defer release()
		if err := s.checkRoom(ctx, current); err != nil {
			return Meeting{}, err
		}
	}

	updated, err := s.meetings.UpdateStatus(ctx, change)
	if err != nil {
		if errors.Is(err, persistence.ErrStaleStatus) {
			return Meeting{}, s.staleGuard(ctx, op, current)
		}
		return Meeting{}, mapMeetingRepoError(err)
	}
	return updated, nil
}

func (s *MeetingService) checkStartWindow(m Meeting) error {
	opensAt, err := scheduler.StartOpensAt(m.Date, m.StartTime, s.location)
	if err != nil {
		return fmt.Errorf("start window: %w", err)
	}
	if s.now().Before(opensAt) {
		return &GuardError{
			Operation: string(scheduler.TransitionStart),
			Status:    m.Status,
			Reason:    fmt.Sprintf("meeting can be started from %s", opensAt.Format(time.RFC3339)),
			Err:       ErrStartTooEarly,
		}
	}
	return nil
}

// checkRoom runs the conflict checker against the stored room day, excluding m itself.
func (s *MeetingService) checkRoom(ctx context.Context, m Meeting) error {
	existing, err := s.meetings.ListRoomDay(ctx, m.RoomID, m.Date, scheduler.DefaultBlockingStatuses...)
	if err != nil {
		return fmt.Errorf("list room day: %w", err)
	}
	bookings := make([]scheduler.Booking, len(existing))
	for i, e := range existing {
		bookings[i] = e.Booking()
	}
	if conflict, found := scheduler.FindConflict(bookings, m.Window(), m.ID, nil); found {
		return &ConflictError{Conflict: conflict}
	}
	return nil
}

func (s *MeetingService) load(ctx context.Context, meetingID string) (Meeting, error) {
	if s.meetings == nil {
		return Meeting{}, fmt.Errorf("meeting repository not configured")
	}
	if strings.TrimSpace(meetingID) == "" {
		return Meeting{}, ErrNotFound
	}
	m, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, mapMeetingRepoError(err)
	}
	return m, nil
}

// staleGuard reports a lost compare-and-set with the status found on reload.
func (s *MeetingService) staleGuard(ctx context.Context, op string, previous Meeting) error {
	status := previous.Status
	if reloaded, err := s.meetings.GetMeeting(ctx, previous.ID); err == nil {
		status = reloaded.Status
	} else if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return stateGuard(op, status, "meeting status changed while the request was processed")
}

func (s *MeetingService) assignParticipantIDs(m *Meeting) {
	for i := range m.Participants {
		m.Participants[i].ID = s.idGenerator()
		m.Participants[i].MeetingID = m.ID
	}
}

// buildMeeting validates input and resolves the room and roster references.
func (s *MeetingService) buildMeeting(ctx context.Context, input MeetingInput) (Meeting, error) {
	vErr := &ValidationError{}

	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(title) > maxMeetingTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxMeetingTitleLength))
	}

	roomID := strings.TrimSpace(input.RoomID)
	if roomID == "" {
		vErr.add("room_id", "room is required")
	}

	date, dateErr := scheduler.ParseDate(strings.TrimSpace(input.Date))
	if dateErr != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	start, startErr := scheduler.ParseTimeOfDay(input.StartTime)
	if startErr != nil {
		vErr.add("start_time", "start time must be HH:MM")
	}
	end, endErr := scheduler.ParseTimeOfDay(input.EndTime)
	if endErr != nil {
		vErr.add("end_time", "end time must be HH:MM")
	}
	if startErr == nil && endErr == nil && end <= start {
		vErr.add("end_time", "end time must be after start time")
	}

	status := input.Status
	if status == "" {
		status = scheduler.StatusDraft
	}
	if status != scheduler.StatusDraft && status != scheduler.StatusScheduled {
		vErr.add("status", "meeting can only be saved as draft or scheduled")
	}

	participants, userIDs := validateRoster(input.Participants, vErr)
	if vErr.HasErrors() {
		return Meeting{}, vErr
	}

	if err := s.ensureRoomExists(ctx, roomID); err != nil {
		return Meeting{}, err
	}
	if err := s.ensureUsersExist(ctx, userIDs); err != nil {
		return Meeting{}, err
	}

	return Meeting{
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		RoomID:       roomID,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		Status:       status,
		Participants: participants,
	}, nil
}

func validateRoster(inputs []ParticipantInput, vErr *ValidationError) ([]Participant, []string) {
	participants := make([]Participant, 0, len(inputs))
	ids := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))

	for i, in := range inputs {
		field := fmt.Sprintf("participants[%d]", i)
		userID := strings.TrimSpace(in.UserID)
		if userID == "" {
			vErr.add(field+".user_id", "user is required")
			continue
		}
		if _, dup := seen[userID]; dup {
			vErr.add(field+".user_id", "user is listed more than once")
			continue
		}
		seen[userID] = struct{}{}

		role := in.Role
		if role == "" {
			role = scheduler.RoleParticipant
		}
		if !role.Valid() {
			vErr.add(field+".role", "role must be moderator or participant")
			continue
		}

		participants = append(participants, Participant{
			UserID:           userID,
			Role:             role,
			AttendanceStatus: scheduler.AttendanceInvited,
		})
		ids = append(ids, userID)
	}
	return participants, ids
}

func (s *MeetingService) ensureRoomExists(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if isNotFoundError(err) {
			return newValidationError("room_id", "room does not exist")
		}
		return fmt.Errorf("lookup room: %w", err)
	}
	return nil
}

func (s *MeetingService) ensureUsersExist(ctx context.Context, ids []string) error {
	if s.users == nil || len(ids) == 0 {
		return nil
	}
	found, err := s.users.LookupUsers(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup participants: %w", err)
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return newValidationError("participants", "unknown users: "+strings.Join(missing, ", "))
	}
	return nil
}

func mapMeetingRepoError(err error) error {
	if err == nil {
		return nil
	}
	var overlap *persistence.OverlapError
	if errors.As(err, &overlap) {
		return &ConflictError{Conflict: scheduler.Conflict{
			WithMeetingID: overlap.MeetingID,
			RoomID:        overlap.RoomID,
			Date:          scheduler.Date(overlap.Date),
			Start:         scheduler.TimeOfDay(overlap.StartTime),
			End:           scheduler.TimeOfDay(overlap.EndTime),
			Status:        scheduler.Status(overlap.Status),
		}}
	}
	var vErr *ValidationError
	var cErr *ConflictError
	var gErr *GuardError
	if errors.As(err, &vErr) || errors.As(err, &cErr) || errors.As(err, &gErr) {
		return err
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return newValidationError("participants", "user is listed more than once")
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return newValidationError("meeting", "referenced room or user does not exist")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return newValidationError("meeting", "meeting was rejected by storage constraints")
	}
	return fmt.Errorf("meeting repository: %w", err)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
