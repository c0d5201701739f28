package domain

import "encoding/json"

// Client-to-server event types.
const (
	EventJoinRoom            = "join-room"
	EventSetProfile          = "set-profile"
	EventOffer               = "offer"
	EventAnswer              = "answer"
	EventICECandidate        = "ice-candidate"
	EventChatMessage         = "chat-message"
	EventStartMedicalRecord  = "start-medical-record"
	EventUpdateMedicalRecord = "update-medical-record"
	EventEndAppointment      = "end-appointment"
)

// Server-to-client event types. The relayed kinds (offer, answer,
// ice-candidate, chat-message) go out under their inbound names.
const (
	EventConnected        = "connected"
	EventRoomCreated      = "room-created"
	EventPeerJoined       = "peer-joined"
	EventRoomFull         = "room-full"
	EventProfileUpdated   = "profile-updated"
	EventPeerLeft         = "peer-left"
	EventAppointmentEnded = "appointment-ended"
	EventRoomEnded        = "room-ended"
	EventError            = "error"
)

// Event is the wire envelope in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope. Payloads are plain structs
// from this package, so marshalling does not fail in practice.
func NewEvent(typ string, payload any) Event {
	raw, _ := json.Marshal(payload)
	return Event{Type: typ, Payload: raw}
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	// Profile is optional; an empty profile means "unspecified until set".
	Profile *Profile `json:"profile,omitempty"`
	// Metadata is honored only when this join creates the room.
	Metadata *RoomMetadata `json:"metadata,omitempty"`
}

type SetProfilePayload struct {
	Profile Profile `json:"profile"`
}

type RoomCreatedPayload struct {
	RoomID       string        `json:"roomId"`
	ConnectionID string        `json:"connectionId"`
	Metadata     *RoomMetadata `json:"metadata,omitempty"`
}

// PeerJoinedPayload is sent to the joiner with the full existing roster, and
// to each existing member with just the new peer. The roster plus the
// receiver's own connection id is enough for both sides to agree on the
// initial offerer without a server round-trip: the member with the
// lexicographically smaller connection id offers.
type PeerJoinedPayload struct {
	RoomID string   `json:"roomId"`
	Peers  []Member `json:"peers"`
}

type RoomFullPayload struct {
	RoomID string `json:"roomId"`
}

// SignalPayload carries offer/answer/ice-candidate traffic. SDP and
// candidate bodies are opaque to the server and forwarded unchanged.
// From and Profile are stamped by the server, never trusted from the client.
type SignalPayload struct {
	RoomID    string          `json:"roomId"`
	From      string          `json:"from,omitempty"`
	Profile   *Profile        `json:"profile,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ChatPayload struct {
	RoomID     string   `json:"roomId"`
	From       string   `json:"from,omitempty"`
	Profile    *Profile `json:"profile,omitempty"`
	Text       string   `json:"text"`
	SentAtUnix int64    `json:"sentAtUnix,omitempty"`
}

type ProfileUpdatedPayload struct {
	RoomID       string  `json:"roomId"`
	ConnectionID string  `json:"connectionId"`
	Profile      Profile `json:"profile"`
}

type PeerLeftPayload struct {
	RoomID       string   `json:"roomId"`
	ConnectionID string   `json:"connectionId"`
	Profile      *Profile `json:"profile,omitempty"`
}

type MedicalRecordPayload struct {
	RoomID         string          `json:"roomId"`
	AppointmentID  string          `json:"appointmentId"`
	Notes          json.RawMessage `json:"notes,omitempty"`
	From           string          `json:"from,omitempty"`
	RecordedAtUnix int64           `json:"recordedAtUnix,omitempty"`
}

type EndAppointmentPayload struct {
	RoomID   string `json:"roomId"`
	Summary  string `json:"summary,omitempty"`
	FollowUp string `json:"followUp,omitempty"`
}

type AppointmentEndedPayload struct {
	RoomID      string `json:"roomId"`
	Summary     string `json:"summary,omitempty"`
	FollowUp    string `json:"followUp,omitempty"`
	EndedAtUnix int64  `json:"endedAtUnix"`
}

type RoomEndedPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
