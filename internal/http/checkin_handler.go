package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meeting-checkin/internal/application"
)

type checkinTokenService interface {
	GenerateToken(ctx context.Context, params application.GenerateTokenParams) (application.CheckinToken, error)
	GetStatus(ctx context.Context, principal application.Principal, meetingID string) (application.TokenStatus, error)
	Invalidate(ctx context.Context, principal application.Principal, meetingID string) error
}

type attendanceService interface {
	CheckIn(ctx context.Context, params application.CheckInParams) (application.CheckInResult, error)
}

// CheckinHandler serves token management for organizers and moderators and
// the anonymous check-in form.
type CheckinHandler struct {
	base
	tokens     checkinTokenService
	attendance attendanceService
}

func NewCheckinHandler(tokens checkinTokenService, attendance attendanceService, logger *slog.Logger) *CheckinHandler {
	return &CheckinHandler{base: newBase("CheckinHandler", logger), tokens: tokens, attendance: attendance}
}

func (h *CheckinHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.tokens == nil {
		unavailable(w)
		return
	}
	meetingID, ok := h.pathID(w, r, "GenerateToken", errInvalidMeetingID)
	if !ok {
		return
	}

	var req tokenRequest
	if !h.readJSON(w, r, "GenerateToken", &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "GenerateToken", "principal_id", principal.UserID, "meeting_id", meetingID)
	issued, err := h.tokens.GenerateToken(r.Context(), application.GenerateTokenParams{
		Principal:       principal,
		MeetingID:       meetingID,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "token generation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "check-in token issued")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, tokenResponse{
		MeetingID: issued.MeetingID,
		Token:     issued.Token,
		ExpiresAt: formatTimestamp(issued.ExpiresAt),
	})
}

func (h *CheckinHandler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.tokens == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := strings.TrimSpace(r.PathValue("id"))
	if meetingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status, err := h.tokens.GetStatus(r.Context(), principal, meetingID)
	if err != nil {
		h.log(r.Context(), "TokenStatus", "principal_id", principal.UserID, "meeting_id", meetingID).
			ErrorContext(r.Context(), "token status failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dto := tokenStatusDTO{
		Active:           status.Active,
		Expired:          status.Expired,
		Token:            status.Token,
		RemainingSeconds: status.RemainingSeconds,
	}
	if status.ExpiresAt != nil {
		formatted := formatTimestamp(*status.ExpiresAt)
		dto.ExpiresAt = &formatted
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dto)
}

func (h *CheckinHandler) InvalidateToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.tokens == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID := strings.TrimSpace(r.PathValue("id"))
	if meetingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "InvalidateToken", "principal_id", principal.UserID, "meeting_id", meetingID)
	if err := h.tokens.Invalidate(r.Context(), principal, meetingID); err != nil {
		logger.ErrorContext(r.Context(), "token invalidation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "check-in token invalidated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// CheckIn is public. Every resolved attempt answers 200 with an outcome.
func (h *CheckinHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.attendance == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req checkInRequest
	if !h.readJSON(w, r, "CheckIn", &req) {
		return
	}

	result, err := h.attendance.CheckIn(r.Context(), application.CheckInParams{
		Token:  strings.TrimSpace(req.Token),
		Digits: strings.TrimSpace(req.Last4Digits),
	})
	if err != nil {
		h.log(r.Context(), "CheckIn").ErrorContext(r.Context(), "check-in failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, checkInResponse{
		Outcome:         string(result.Outcome),
		ParticipantName: result.ParticipantName,
	})
}

type tokenRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

type tokenResponse struct {
	MeetingID string `json:"meetingId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type tokenStatusDTO struct {
	Active           bool    `json:"active"`
	Expired          bool    `json:"expired"`
	Token            string  `json:"token,omitempty"`
	ExpiresAt        *string `json:"expiresAt"`
	RemainingSeconds int     `json:"remainingSeconds"`
}

type checkInRequest struct {
	Token       string `json:"token"`
	Last4Digits string `json:"last4Digits"`
}

type checkInResponse struct {
	Outcome         string `json:"outcome"`
	ParticipantName string `json:"participantName,omitempty"`
}
