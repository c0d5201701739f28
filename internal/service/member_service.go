package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/telecare-platform/signaling-service/internal/domain"
	"github.com/telecare-platform/signaling-service/internal/registry"
)

// MemberService handles room membership and presence: joins, profile
// updates, disconnects and the administrative forced teardown.
type MemberService struct {
	registry *registry.Registry
	sender   PeerSender
	events   EventSink
}

func NewMemberService(reg *registry.Registry, sender PeerSender, events EventSink) *MemberService {
	return &MemberService{registry: reg, sender: sender, events: events}
}

// Join runs createOrJoin and fans out the result: room-created to a creator,
// peer-joined with the existing roster to a joiner, peer-joined with the new
// member to everyone already there, room-full to a rejected joiner.
func (s *MemberService) Join(connectionID string, p domain.JoinRoomPayload) error {
	profile := domain.Profile{Role: domain.RoleUnspecified}
	if p.Profile != nil {
		profile = profile.Merge(*p.Profile)
	}
	m := domain.Member{ConnectionID: connectionID, Profile: profile}

	res, err := s.registry.CreateOrJoin(p.RoomID, m, p.Metadata)
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		_ = s.sender.Send(connectionID, domain.NewEvent(domain.EventRoomFull, domain.RoomFullPayload{RoomID: p.RoomID}))
		return nil
	case err != nil:
		return fmt.Errorf("registry.CreateOrJoin: %w", err)
	}

	if res.Created {
		_ = s.sender.Send(connectionID, domain.NewEvent(domain.EventRoomCreated, domain.RoomCreatedPayload{
			RoomID:       p.RoomID,
			ConnectionID: connectionID,
			Metadata:     res.Metadata,
		}))
		kind := domain.KindAdHoc
		if res.Metadata != nil {
			kind = res.Metadata.Kind
		}
		s.publish(LifecycleRoomOpened, LifecycleEvent{RoomID: p.RoomID, ConnectionID: connectionID, Kind: kind, Participants: 1})
		return nil
	}

	// roster to the joiner, the new member to everyone already there
	_ = s.sender.Send(connectionID, domain.NewEvent(domain.EventPeerJoined, domain.PeerJoinedPayload{
		RoomID: p.RoomID,
		Peers:  res.Peers,
	}))
	ev := domain.NewEvent(domain.EventPeerJoined, domain.PeerJoinedPayload{
		RoomID: p.RoomID,
		Peers:  []domain.Member{m},
	})
	for _, peer := range res.Peers {
		_ = s.sender.Send(peer.ConnectionID, ev)
	}
	s.publish(LifecyclePeerJoined, LifecycleEvent{RoomID: p.RoomID, ConnectionID: connectionID, Participants: len(res.Peers) + 1})
	return nil
}

// UpdateProfile merges the fields into the member entry and notifies the
// rest of the room. Before a join there is nothing to update; the gateway
// keeps the profile and applies it at join time.
func (s *MemberService) UpdateProfile(connectionID string, p domain.Profile) error {
	roomID, self, others, err := s.registry.UpdateProfile(connectionID, p)
	if err != nil {
		return err
	}
	ev := domain.NewEvent(domain.EventProfileUpdated, domain.ProfileUpdatedPayload{
		RoomID:       roomID,
		ConnectionID: connectionID,
		Profile:      self.Profile,
	})
	for _, peer := range others {
		_ = s.sender.Send(peer.ConnectionID, ev)
	}
	return nil
}

// Disconnect is the cancellation path: the membership change is synchronous,
// the peer-left fan-out is best-effort afterwards. A connection that never
// joined anything is a no-op.
func (s *MemberService) Disconnect(connectionID string) {
	roomID, remaining, err := s.registry.LeaveAny(connectionID)
	if err != nil {
		return
	}
	if len(remaining) == 0 {
		s.publish(LifecycleRoomClosed, LifecycleEvent{RoomID: roomID, Reason: "empty"})
		return
	}
	ev := domain.NewEvent(domain.EventPeerLeft, domain.PeerLeftPayload{
		RoomID:       roomID,
		ConnectionID: connectionID,
	})
	for _, peer := range remaining {
		_ = s.sender.Send(peer.ConnectionID, ev)
	}
	s.publish(LifecyclePeerLeft, LifecycleEvent{RoomID: roomID, ConnectionID: connectionID, Participants: len(remaining)})
}

// CloseRoom is the administrative teardown: notify whoever is still in the
// room, then delete it. Closing an unknown room is already-resolved.
func (s *MemberService) CloseRoom(roomID, reason string) error {
	removed, err := s.registry.ForceEnd(roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}
	ev := domain.NewEvent(domain.EventRoomEnded, domain.RoomEndedPayload{RoomID: roomID, Reason: reason})
	for _, m := range removed {
		_ = s.sender.Send(m.ConnectionID, ev)
	}
	slog.Info("room force-closed", "room", roomID, "reason", reason, "removed", len(removed))
	s.publish(LifecycleRoomClosed, LifecycleEvent{RoomID: roomID, Reason: reason})
	return nil
}

func (s *MemberService) publish(event string, data any) {
	if s.events != nil {
		s.events.Publish(event, data)
	}
}
