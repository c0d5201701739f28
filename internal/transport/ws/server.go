package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/telecare-platform/signaling-service/internal/domain"
)

type MemberSvc interface {
	Join(connectionID string, p domain.JoinRoomPayload) error
	UpdateProfile(connectionID string, p domain.Profile) error
	Disconnect(connectionID string)
}

type SignalSvc interface {
	RelaySignal(senderID, kind string, p domain.SignalPayload) error
	RelayChat(senderID string, p domain.ChatPayload) error
}

type AppointmentSvc interface {
	RelayRecord(senderID, kind string, p domain.MedicalRecordPayload) error
	End(senderID string, p domain.EndAppointmentPayload) error
}

// Server is the connection gateway: it assigns connection identities,
// decodes inbound events and routes them. The sender id on everything
// downstream is the id assigned here, never a client-supplied value.
type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	memberSvc MemberSvc
	signalSvc SignalSvc
	apptSvc   AppointmentSvc

	pingEvery       time.Duration
	maxMessageBytes int64
}

func NewServer(hub *Hub, member MemberSvc, signal SignalSvc, appt AppointmentSvc) *Server {
	return &Server{
		hub:       hub,
		memberSvc: member,
		signalSvc: signal,
		apptSvc:   appt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:       15 * time.Second,
		maxMessageBytes: 64 * 1024, // enough for SDP payloads
	}
}

func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

func (s *Server) SetMaxMessageBytes(n int64) {
	if n > 0 {
		s.maxMessageBytes = n
	}
}

// WS endpoint: GET /ws. Authentication happens upstream; the profile arrives
// via set-profile / join-room events.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	connID := uuid.NewString()
	c := newWsConn(conn, connID)
	s.hub.Add(c)
	slog.Debug("ws connected", "conn", connID)

	// the client needs its own id for the offerer rule
	_ = c.Send(domain.NewEvent(domain.EventConnected, domain.ConnectedPayload{ConnectionID: connID}))

	go s.writeLoop(c)
	s.readLoop(c)

	// membership must reflect the departure before the disconnect counts as
	// processed; peer notifications inside Disconnect are best-effort
	s.hub.Remove(c)
	s.memberSvc.Disconnect(connID)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conn", connID, "err", err)
	}
	slog.Debug("ws disconnected", "conn", connID)
}

func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(s.maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", "conn", c.id, "err", err)
			}
			break
		}
		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("ws malformed event", "conn", c.id, "err", err)
			continue
		}
		s.route(c, ev)
	}
}

func (s *Server) route(c *wsConn, ev domain.Event) {
	switch ev.Type {
	case domain.EventJoinRoom:
		var p domain.JoinRoomPayload
		if !s.decode(c, ev, &p) || p.RoomID == "" {
			return
		}
		if p.Profile == nil {
			if pending, ok := c.takePendingProfile(); ok {
				p.Profile = &pending
			}
		}
		s.reject(c, s.memberSvc.Join(c.id, p))

	case domain.EventSetProfile:
		var p domain.SetProfilePayload
		if !s.decode(c, ev, &p) {
			return
		}
		err := s.memberSvc.UpdateProfile(c.id, p.Profile)
		if errors.Is(err, domain.ErrNotInRoom) {
			// not joined yet; apply at join time
			c.setPendingProfile(p.Profile)
			return
		}
		s.reject(c, err)

	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		var p domain.SignalPayload
		if !s.decode(c, ev, &p) {
			return
		}
		s.reject(c, s.signalSvc.RelaySignal(c.id, ev.Type, p))

	case domain.EventChatMessage:
		var p domain.ChatPayload
		if !s.decode(c, ev, &p) {
			return
		}
		s.reject(c, s.signalSvc.RelayChat(c.id, p))

	case domain.EventStartMedicalRecord, domain.EventUpdateMedicalRecord:
		var p domain.MedicalRecordPayload
		if !s.decode(c, ev, &p) {
			return
		}
		s.reject(c, s.apptSvc.RelayRecord(c.id, ev.Type, p))

	case domain.EventEndAppointment:
		var p domain.EndAppointmentPayload
		if !s.decode(c, ev, &p) {
			return
		}
		s.reject(c, s.apptSvc.End(c.id, p))

	default:
		slog.Debug("ws unknown event type", "conn", c.id, "type", ev.Type)
	}
}

func (s *Server) decode(c *wsConn, ev domain.Event, dst any) bool {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		slog.Debug("ws malformed payload", "conn", c.id, "type", ev.Type, "err", err)
		return false
	}
	return true
}

// reject maps the domain error taxonomy onto the single generic rejection
// event; the offending event is never forwarded. Anything else is an
// internal fault, logged and contained to this connection.
func (s *Server) reject(c *wsConn, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrNotInRoom),
		errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrNotAppointment):
		_ = c.Send(domain.NewEvent(domain.EventError, domain.ErrorPayload{Error: "not allowed"}))
	default:
		slog.Warn("ws event failed", "conn", c.id, "err", err)
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}
