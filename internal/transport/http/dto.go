package http

import (
	"time"

	"github.com/telecare-platform/signaling-service/internal/domain"
)

type RoomItem struct {
	ID           string               `json:"id"`
	Participants int                  `json:"participants"`
	Metadata     *domain.RoomMetadata `json:"metadata,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

type RoomsListResponse struct {
	Items []RoomItem `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func roomItem(info domain.RoomInfo) RoomItem {
	return RoomItem{
		ID:           info.ID,
		Participants: info.Participants,
		Metadata:     info.Metadata,
		CreatedAt:    info.CreatedAt,
	}
}
