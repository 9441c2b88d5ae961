package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meeting-checkin/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

// RoomHandler serves the room directory. Reads are open to every session,
// writes are checked by the service.
type RoomHandler struct {
	base
	service roomService
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{base: newBase("RoomHandler", logger), service: service}
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}

	var req roomRequest
	if !h.readJSON(w, r, "Create", &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_name", req.Name)
	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		h.fail(r.Context(), w, logger, "room creation failed", err)
		return
	}

	logger.InfoContext(r.Context(), "room created", "room_id", room.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}
	roomID, ok := h.pathID(w, r, "Get", errInvalidRoomID)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	room, err := h.service.GetRoom(r.Context(), principal, roomID)
	if err != nil {
		h.fail(r.Context(), w, h.log(r.Context(), "Get", "principal_id", principal.UserID, "room_id", roomID), "room lookup failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}
	roomID, ok := h.pathID(w, r, "Update", errInvalidRoomID)
	if !ok {
		return
	}

	var req roomRequest
	if !h.readJSON(w, r, "Update", &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID)
	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.fail(r.Context(), w, logger, "room update failed", err)
		return
	}

	logger.InfoContext(r.Context(), "room updated", "capacity", room.Capacity)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

// Delete fails with 409 while meetings still reference the room.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}
	roomID, ok := h.pathID(w, r, "Delete", errInvalidRoomID)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "room_id", roomID)
	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		h.fail(r.Context(), w, logger, "room delete failed", err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		unavailable(w)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.log(r.Context(), "List", "error_kind", "unauthorized").WarnContext(r.Context(), "missing authenticated principal")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		h.fail(r.Context(), w, h.log(r.Context(), "List", "principal_id", principal.UserID), "room list failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

type roomRequest struct {
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	Capacity   int     `json:"capacity"`
	Facilities *string `json:"facilities"`
}

// toInput trims text fields. A blank facilities value clears the column.
func (r roomRequest) toInput() application.RoomInput {
	input := application.RoomInput{
		Name:     strings.TrimSpace(r.Name),
		Location: strings.TrimSpace(r.Location),
		Capacity: r.Capacity,
	}
	if r.Facilities != nil {
		if trimmed := strings.TrimSpace(*r.Facilities); trimmed != "" {
			input.Facilities = &trimmed
		}
	}
	return input
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Location   string  `json:"location"`
	Capacity   int     `json:"capacity"`
	Facilities *string `json:"facilities,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

func toRoomDTO(room application.Room) roomDTO {
	dto := roomDTO{ID: room.ID, Name: room.Name, Location: room.Location, Capacity: room.Capacity, Facilities: room.Facilities}
	dto.CreatedAt = formatTimestamp(room.CreatedAt)
	dto.UpdatedAt = formatTimestamp(room.UpdatedAt)
	return dto
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, len(rooms))
	for i := range rooms {
		out[i] = toRoomDTO(rooms[i])
	}
	return out
}
