package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/example/meeting-checkin/internal/application"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidMeetingID    = errors.New("無効な会議 ID です。")
	errInvalidUserID       = errors.New("無効なユーザー ID です。")
	errInvalidRoomID       = errors.New("無効な会議室 ID です。")
	errMissingSessionToken = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		})
		return
	}

	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		c := cErr.Conflict
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ROOM_CONFLICT",
			Message:   "指定された時間帯は会議室が使用中です。",
			Conflict: &conflictDTO{
				WithMeetingID: c.WithMeetingID,
				RoomID:        c.RoomID,
				Date:          c.Date.String(),
				StartTime:     c.Start.String(),
				EndTime:       c.End.String(),
				Status:        string(c.Status),
			},
		})
		return
	}

	var inUse *application.RoomInUseError
	if errors.As(err, &inUse) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:  "ROOM_IN_USE",
			Message:    "この会議室を使用している会議があるため削除できません。",
			MeetingIDs: inUse.MeetingIDs,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
		return
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "メールアドレスまたはパスワードが正しくありません",
		})
		return
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "セッションが無効です。再度ログインしてください。",
		})
		return
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "同じ値を持つリソースが既に存在します。",
		})
		return
	}

	var gErr *application.GuardError
	if errors.As(err, &gErr) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "TRANSITION_REJECTED",
			Message:   "現在の状態ではこの操作を実行できません。",
			Guard: &guardDTO{
				Operation: gErr.Operation,
				Status:    string(gErr.Status),
				Reason:    gErr.Reason,
			},
		})
		return
	}

	if errors.Is(err, application.ErrNotFound) {
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "指定されたリソースが見つかりません。",
		})
		return
	}

	r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
		ErrorCode: "INTERNAL_ERROR",
		Message:   "サーバー内部でエラーが発生しました。",
	})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusTooManyRequests:
		return "リクエストが多すぎます。しばらくしてから再試行してください。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[camelFieldKey(field)] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "email is required":
		return "メールアドレスは必須です。"
	case "email is invalid":
		return "メールアドレスの形式が不正です。"
	case "display name is required":
		return "表示名は必須です。"
	case "name is required":
		return "会議室名は必須です。"
	case "location is required":
		return "所在地は必須です。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "title is required":
		return "タイトルは必須です。"
	case "room is required":
		return "会議室は必須です。"
	case "room does not exist":
		return "指定された会議室は存在しません。"
	case "date must be YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "start time must be HH:MM":
		return "開始時刻は HH:MM 形式で指定してください。"
	case "end time must be HH:MM":
		return "終了時刻は HH:MM 形式で指定してください。"
	case "end time must be after start time":
		return "終了時刻は開始時刻より後である必要があります。"
	case "meeting can only be saved as draft or scheduled":
		return "会議は下書きまたは予定済みとしてのみ保存できます。"
	case "user is required":
		return "参加者のユーザー ID は必須です。"
	case "user is listed more than once":
		return "同じ参加者が複数回指定されています。"
	case "role must be moderator or participant":
		return "役割は moderator または participant を指定してください。"
	case "user still organizes or attends meetings":
		return "このユーザーが関係する会議が存在します。"
	case "administrators cannot delete their own account":
		return "自分自身のアカウントは削除できません。"
	case "password must be at least 8 characters":
		return "パスワードは 8 文字以上で指定してください。"
	case "status must be one of draft, scheduled, ongoing, completed, cancelled":
		return "状態は draft, scheduled, ongoing, completed, cancelled のいずれかを指定してください。"
	case "exactly 4 digits are required":
		return "数字 4 桁を入力してください。"
	case "duration must be between 1 and 30 minutes":
		return "有効時間は 1 分から 30 分の範囲で指定してください。"
	default:
		if strings.HasPrefix(message, "unknown users:") {
			return "存在しないユーザー ID が含まれています: " + strings.TrimSpace(strings.TrimPrefix(message, "unknown users:"))
		}
		return message
	}
}

// camelFieldKey rewrites service field paths such as participants[1].user_id
// into the wire spelling participants[1].userId.
func camelFieldKey(field string) string {
	var b strings.Builder
	b.Grow(len(field))
	upper := false
	for _, r := range field {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

type errorResponse struct {
	ErrorCode  string            `json:"errorCode,omitempty"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"`
	Conflict   *conflictDTO      `json:"conflict,omitempty"`
	Guard      *guardDTO         `json:"guard,omitempty"`
	MeetingIDs []string          `json:"meetingIds,omitempty"`
}

type conflictDTO struct {
	WithMeetingID string `json:"withMeetingId"`
	RoomID        string `json:"roomId"`
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Status        string `json:"status"`
}

type guardDTO struct {
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}
