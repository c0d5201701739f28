package service

import (
	"context"

	"github.com/telecare-platform/signaling-service/internal/domain"
)

// PeerSender delivers an event to a single live connection, best-effort.
// Implemented by the websocket hub; a recipient that already disconnected is
// silently dropped.
type PeerSender interface {
	Send(connectionID string, ev domain.Event) error
}

// EventSink receives room lifecycle events for the admin stream.
type EventSink interface {
	Publish(event string, data any)
}

// RecordsSink hands a final call summary to the external record-keeping
// service. Called fire-and-forget; teardown never blocks on it.
type RecordsSink interface {
	SubmitSummary(ctx context.Context, s domain.CallSummary) error
}

// Lifecycle event names published on the EventSink.
const (
	LifecycleRoomOpened = "room-opened"
	LifecycleRoomClosed = "room-closed"
	LifecyclePeerJoined = "peer-joined"
	LifecyclePeerLeft   = "peer-left"
)

// LifecycleEvent is the data published with every lifecycle event.
type LifecycleEvent struct {
	RoomID       string          `json:"roomId"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Kind         domain.RoomKind `json:"kind,omitempty"`
	Participants int             `json:"participants,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}
