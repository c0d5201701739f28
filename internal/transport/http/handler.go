// Package http is the administrative surface: side-effect-free reads of the
// room registry plus forced teardown. It sits outside the signaling hot path.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/telecare-platform/signaling-service/internal/domain"
)

type RoomDirectory interface {
	ListRooms() []domain.RoomInfo
	RoomInfo(roomID string) (domain.RoomInfo, error)
}

type RoomCloser interface {
	CloseRoom(roomID, reason string) error
}

type Handler struct {
	rooms  RoomDirectory
	closer RoomCloser
}

func NewHandler(rooms RoomDirectory, closer RoomCloser) *Handler {
	return &Handler{rooms: rooms, closer: closer}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.ListRooms()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for _, info := range rooms {
		resp.Items = append(resp.Items, roomItem(info))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := h.rooms.RoomInfo(id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, roomItem(info))
}

// DELETE /rooms/{id} — forced teardown; remaining members get room-ended.
// Deleting a room that is already gone is already-resolved, not an error.
func (h *Handler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.closer.CloseRoom(id, "ended by administrator"); err != nil {
		slog.Error("handler.CloseRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
