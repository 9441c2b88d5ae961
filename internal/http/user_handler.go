package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meeting-checkin/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
}

// UserHandler serves the admin-only user directory.
type UserHandler struct {
	base
	service userService
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	return &UserHandler{base: newBase("UserHandler", logger), service: service}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}

	var req userRequest
	if !h.readJSON(w, r, "Create", &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "email", req.Email)
	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		h.fail(r.Context(), w, logger, "user creation failed", err)
		return
	}

	logger.InfoContext(r.Context(), "user created", "user_id", user.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}
	userID, ok := h.pathID(w, r, "Update", errInvalidUserID)
	if !ok {
		return
	}

	var req userRequest
	if !h.readJSON(w, r, "Update", &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID)
	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.fail(r.Context(), w, logger, "user update failed", err)
		return
	}

	logger.InfoContext(r.Context(), "user updated", "password_changed", req.Password != "")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}
	userID, ok := h.pathID(w, r, "Delete", errInvalidUserID)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "user_id", userID)
	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		h.fail(r.Context(), w, logger, "user delete failed", err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		h.fail(r.Context(), w, logger, "user list failed", err)
		return
	}

	logger.DebugContext(r.Context(), "users listed", "result_count", len(users))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

// userRequest is shared by create and update. An empty password on update
// keeps the stored hash.
type userRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ExternalID  string `json:"externalId"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"isAdmin"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		Email:       strings.ToLower(strings.TrimSpace(r.Email)),
		DisplayName: strings.TrimSpace(r.DisplayName),
		ExternalID:  strings.TrimSpace(r.ExternalID),
		Password:    r.Password,
		IsAdmin:     r.IsAdmin,
	}
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

// userDTO never carries the password hash.
type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ExternalID  string `json:"externalId,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toUserDTO(user application.User) userDTO {
	dto := userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		ExternalID:  user.ExternalID,
		IsAdmin:     user.IsAdmin,
	}
	dto.CreatedAt = formatTimestamp(user.CreatedAt)
	dto.UpdatedAt = formatTimestamp(user.UpdatedAt)
	return dto
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, len(users))
	for i := range users {
		out[i] = toUserDTO(users[i])
	}
	return out
}
