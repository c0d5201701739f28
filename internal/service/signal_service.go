package service

import (
	"strings"
	"time"

	"github.com/telecare-platform/signaling-service/internal/domain"
	"github.com/telecare-platform/signaling-service/internal/registry"
)

// SignalService forwards session-negotiation traffic between room members.
// It is stateless beyond reading the registry's current membership: every
// relayed event is stamped with the gateway-assigned sender id and the
// sender's current profile, and the sdp/candidate bodies pass through
// untouched.
type SignalService struct {
	registry *registry.Registry
	sender   PeerSender
}

func NewSignalService(reg *registry.Registry, sender PeerSender) *SignalService {
	return &SignalService{registry: reg, sender: sender}
}

// RelaySignal forwards an offer, answer or ice-candidate to all other room
// members. In a two-party room that is a unicast; the logic is written over
// "all others" so multi-party rooms need no change.
func (s *SignalService) RelaySignal(senderID, kind string, p domain.SignalPayload) error {
	self, others, err := s.registry.Peers(p.RoomID, senderID)
	if err != nil {
		return err
	}
	p.From = self.ConnectionID
	p.Profile = &self.Profile

	s.fanOut(others, domain.NewEvent(kind, p))
	return nil
}

// RelayChat broadcasts a chat message to all other members, stamped with the
// server receive time.
func (s *SignalService) RelayChat(senderID string, p domain.ChatPayload) error {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil
	}
	self, others, err := s.registry.Peers(p.RoomID, senderID)
	if err != nil {
		return err
	}
	p.From = self.ConnectionID
	p.Profile = &self.Profile
	p.Text = text
	p.SentAtUnix = time.Now().Unix()

	s.fanOut(others, domain.NewEvent(domain.EventChatMessage, p))
	return nil
}

// Best effort, in receive order. A recipient that disconnected mid-relay is
// dropped without surfacing anything to the sender.
func (s *SignalService) fanOut(members []domain.Member, ev domain.Event) {
	for _, m := range members {
		_ = s.sender.Send(m.ConnectionID, ev)
	}
}
