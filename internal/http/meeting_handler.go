package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/scheduler"
)

type meetingService interface {
	CreateMeeting(ctx context.Context, params application.CreateMeetingParams) (application.Meeting, error)
	UpdateMeeting(ctx context.Context, params application.UpdateMeetingParams) (application.Meeting, error)
	DeleteMeeting(ctx context.Context, principal application.Principal, meetingID string) error
	GetMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	ListRoomDay(ctx context.Context, principal application.Principal, roomID, date string) ([]application.Meeting, error)
	ScheduleMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	StartMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	CompleteMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	CancelMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	UpdateStatus(ctx context.Context, params application.UpdateStatusParams) (application.Meeting, error)
	AttendanceSheet(ctx context.Context, principal application.Principal, meetingID string) (application.AttendanceSheet, error)
}

// MeetingHandler serves meeting CRUD, lifecycle transitions, the room
// calendar and the attendance sheet.
type MeetingHandler struct {
	base
	service meetingService
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{base: newBase("MeetingHandler", logger), service: service}
}

func (h *MeetingHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		unavailable(w)
		return false
	}
	return true
}

func (h *MeetingHandler) meetingID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	return h.pathID(w, r, operation, errInvalidMeetingID)
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req meetingRequest
	if !h.readJSON(w, r, "Create", &req) {
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	meeting, err := h.service.CreateMeeting(r.Context(), application.CreateMeetingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("meeting_id", meeting.ID).InfoContext(r.Context(), "meeting created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	meetingID, ok := h.meetingID(w, r, "Get")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meeting, err := h.service.GetMeeting(r.Context(), principal, meetingID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "meeting_id", meetingID).
			ErrorContext(r.Context(), "meeting lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	meetingID, ok := h.meetingID(w, r, "Update")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req meetingRequest
	if !h.readJSON(w, r, "Update", &req) {
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "meeting_id", meetingID)

	meeting, err := h.service.UpdateMeeting(r.Context(), application.UpdateMeetingParams{
		Principal: principal,
		MeetingID: meetingID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meeting updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	meetingID, ok := h.meetingID(w, r, "Delete")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "meeting_id", meetingID)
	if err := h.service.DeleteMeeting(r.Context(), principal, meetingID); err != nil {
		logger.ErrorContext(r.Context(), "meeting delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meeting deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// RoomDay lists the meetings booked in a room on ?date=YYYY-MM-DD.
func (h *MeetingHandler) RoomDay(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID := strings.TrimSpace(r.PathValue("id"))
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	logger := h.log(r.Context(), "RoomDay", "principal_id", principal.UserID, "room_id", roomID, "date", date)

	meetings, err := h.service.ListRoomDay(r.Context(), principal, roomID, date)
	if err != nil {
		logger.ErrorContext(r.Context(), "room calendar lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(meetings)).InfoContext(r.Context(), "room calendar listed")
	out := make([]meetingDTO, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, toMeetingDTO(m))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMeetingsResponse{Meetings: out})
}

func (h *MeetingHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Schedule", h.service.ScheduleMeeting)
}

func (h *MeetingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Start", h.service.StartMeeting)
}

func (h *MeetingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Complete", h.service.CompleteMeeting)
}

func (h *MeetingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.transition(w, r, "Cancel", h.service.CancelMeeting)
}

type transitionFunc func(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)

func (h *MeetingHandler) transition(w http.ResponseWriter, r *http.Request, operation string, apply transitionFunc) {
	meetingID, ok := h.meetingID(w, r, operation)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "meeting_id", meetingID)

	meeting, err := apply(r.Context(), principal, meetingID)
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", meeting.Status).InfoContext(r.Context(), "meeting transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

// UpdateStatus applies {"status": "..."} through the same guards as the
// dedicated transition endpoints.
func (h *MeetingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	meetingID, ok := h.meetingID(w, r, "UpdateStatus")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req statusRequest
	if !h.readJSON(w, r, "UpdateStatus", &req) {
		return
	}

	logger := h.log(r.Context(), "UpdateStatus", "principal_id", principal.UserID, "meeting_id", meetingID, "target", req.Status)
	meeting, err := h.service.UpdateStatus(r.Context(), application.UpdateStatusParams{
		Principal: principal,
		MeetingID: meetingID,
		Status:    scheduler.Status(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "status update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "status updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	meetingID, ok := h.meetingID(w, r, "Attendance")
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sheet, err := h.service.AttendanceSheet(r.Context(), principal, meetingID)
	if err != nil {
		h.log(r.Context(), "Attendance", "principal_id", principal.UserID, "meeting_id", meetingID).
			ErrorContext(r.Context(), "attendance sheet failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAttendanceSheetDTO(sheet))
}

type participantRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type meetingRequest struct {
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	RoomID       string               `json:"roomId"`
	Date         string               `json:"date"`
	StartTime    string               `json:"startTime"`
	EndTime      string               `json:"endTime"`
	Status       string               `json:"status"`
	Participants []participantRequest `json:"participants"`
}

func (r meetingRequest) toInput() application.MeetingInput {
	participants := make([]application.ParticipantInput, 0, len(r.Participants))
	for _, p := range r.Participants {
		participants = append(participants, application.ParticipantInput{
			UserID: strings.TrimSpace(p.UserID),
			Role:   scheduler.Role(strings.TrimSpace(p.Role)),
		})
	}
	return application.MeetingInput{
		Title:        strings.TrimSpace(r.Title),
		Description:  strings.TrimSpace(r.Description),
		RoomID:       strings.TrimSpace(r.RoomID),
		Date:         strings.TrimSpace(r.Date),
		StartTime:    strings.TrimSpace(r.StartTime),
		EndTime:      strings.TrimSpace(r.EndTime),
		Status:       scheduler.Status(strings.TrimSpace(r.Status)),
		Participants: participants,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type meetingResponse struct {
	Meeting meetingDTO `json:"meeting"`
}

type listMeetingsResponse struct {
	Meetings []meetingDTO `json:"meetings"`
}

type meetingDTO struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	RoomID       string           `json:"roomId"`
	OrganizerID  string           `json:"organizerId"`
	Date         string           `json:"date"`
	StartTime    string           `json:"startTime"`
	EndTime      string           `json:"endTime"`
	Status       string           `json:"status"`
	Participants []participantDTO `json:"participants"`
	CreatedAt    string           `json:"createdAt"`
	UpdatedAt    string           `json:"updatedAt"`
}

type participantDTO struct {
	ID               string  `json:"id"`
	UserID           string  `json:"userId"`
	Role             string  `json:"role"`
	AttendanceStatus string  `json:"attendanceStatus"`
	CheckInTime      *string `json:"checkInTime"`
}

func toMeetingDTO(m application.Meeting) meetingDTO {
	participants := make([]participantDTO, 0, len(m.Participants))
	for _, p := range m.Participants {
		participants = append(participants, participantDTO{
			ID:               p.ID,
			UserID:           p.UserID,
			Role:             string(p.Role),
			AttendanceStatus: string(p.AttendanceStatus),
			CheckInTime:      formatTimeOfDay(p.CheckInTime),
		})
	}
	return meetingDTO{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		RoomID:       m.RoomID,
		OrganizerID:  m.OrganizerID,
		Date:         m.Date.String(),
		StartTime:    m.StartTime.String(),
		EndTime:      m.EndTime.String(),
		Status:       string(m.Status),
		Participants: participants,
		CreatedAt:    formatTimestamp(m.CreatedAt),
		UpdatedAt:    formatTimestamp(m.UpdatedAt),
	}
}

type attendanceSheetDTO struct {
	Meeting meetingDTO           `json:"meeting"`
	Room    roomDTO              `json:"room"`
	Entries []attendanceEntryDTO `json:"entries"`
}

type attendanceEntryDTO struct {
	ParticipantID    string  `json:"participantId"`
	UserID           string  `json:"userId"`
	DisplayName      string  `json:"displayName"`
	Role             string  `json:"role"`
	AttendanceStatus string  `json:"attendanceStatus"`
	CheckInTime      *string `json:"checkInTime"`
}

func toAttendanceSheetDTO(sheet application.AttendanceSheet) attendanceSheetDTO {
	entries := make([]attendanceEntryDTO, 0, len(sheet.Entries))
	for _, e := range sheet.Entries {
		entries = append(entries, attendanceEntryDTO{
			ParticipantID:    e.ParticipantID,
			UserID:           e.UserID,
			DisplayName:      e.DisplayName,
			Role:             string(e.Role),
			AttendanceStatus: string(e.AttendanceStatus),
			CheckInTime:      formatTimeOfDay(e.CheckInTime),
		})
	}
	return attendanceSheetDTO{
		Meeting: toMeetingDTO(sheet.Meeting),
		Room:    toRoomDTO(sheet.Room),
		Entries: entries,
	}
}

func formatTimeOfDay(t *scheduler.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
