// Package registry owns the volatile room map. It is the only component
// allowed to mutate room membership; everything else reads through its API.
package registry

import (
	"sync"
	"time"

	"github.com/telecare-platform/signaling-service/internal/domain"
)

type room struct {
	id        string
	metadata  *domain.RoomMetadata
	members   []domain.Member // insertion order = join order
	createdAt time.Time
}

// capacity is a derived transition guard on the join edge, not stored state.
// Appointment rooms hold exactly a doctor and a patient; everything else is
// bounded by the configured ceiling (0 = unbounded).
func (r *room) capacity(adHocCeiling int) int {
	if r.metadata != nil && r.metadata.Kind == domain.KindAppointment {
		return domain.AppointmentCapacity
	}
	return adHocCeiling
}

type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	// index maps a connection to the single room it is joined to. Updated in
	// the same critical section as the membership slice, so a connection can
	// never be observed in two rooms.
	index map[string]string

	adHocCeiling int
}

func New(adHocCeiling int) *Registry {
	return &Registry{
		rooms:        make(map[string]*room),
		index:        make(map[string]string),
		adHocCeiling: adHocCeiling,
	}
}

// JoinResult reports whether the caller created the room and, if it joined an
// existing one, who was already there.
type JoinResult struct {
	Created  bool
	Peers    []domain.Member
	Metadata *domain.RoomMetadata
}

// CreateOrJoin creates the room on first join (freezing the supplied
// metadata) or appends the caller to an existing one. The capacity check and
// the append happen under one lock: concurrent joins against the last free
// slot resolve to exactly one success.
func (r *Registry) CreateOrJoin(roomID string, m domain.Member, meta *domain.RoomMetadata) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, joined := r.index[m.ConnectionID]; joined {
		return JoinResult{}, domain.ErrAlreadyJoined
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{
			id:        roomID,
			metadata:  meta,
			members:   []domain.Member{m},
			createdAt: time.Now(),
		}
		r.rooms[roomID] = rm
		r.index[m.ConnectionID] = roomID
		return JoinResult{Created: true, Metadata: rm.metadata}, nil
	}

	if c := rm.capacity(r.adHocCeiling); c > 0 && len(rm.members) >= c {
		return JoinResult{}, domain.ErrRoomFull
	}

	peers := copyMembers(rm.members)
	rm.members = append(rm.members, m)
	r.index[m.ConnectionID] = roomID

	return JoinResult{Peers: peers, Metadata: rm.metadata}, nil
}

// Leave removes the connection from the room and deletes the room the moment
// it becomes empty. Leaving a room the connection is not a member of is a
// no-op, not an error. Returns the remaining members.
func (r *Registry) Leave(roomID, connectionID string) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(roomID, connectionID)
}

// LeaveAny is the disconnect path: it resolves the connection's current room
// through the index, so the gateway does not need to know where the
// connection was.
func (r *Registry) LeaveAny(connectionID string) (string, []domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.index[connectionID]
	if !ok {
		return "", nil, domain.ErrNotInRoom
	}
	remaining, err := r.removeLocked(roomID, connectionID)
	return roomID, remaining, err
}

func (r *Registry) removeLocked(roomID, connectionID string) ([]domain.Member, error) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	for i, m := range rm.members {
		if m.ConnectionID == connectionID {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			delete(r.index, connectionID)
			break
		}
	}
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		return nil, nil
	}
	return copyMembers(rm.members), nil
}

// Metadata returns the frozen creation metadata (nil for ad-hoc rooms).
func (r *Registry) Metadata(roomID string) (*domain.RoomMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return rm.metadata, nil
}

// Peers is the relay's membership check: it returns the sender's own member
// entry and everyone else in the room. ErrNotInRoom doubles as the
// authorization failure for senders that never joined.
func (r *Registry) Peers(roomID, senderID string) (domain.Member, []domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.Member{}, nil, domain.ErrRoomNotFound
	}
	var (
		self   domain.Member
		found  bool
		others = make([]domain.Member, 0, len(rm.members)-1)
	)
	for _, m := range rm.members {
		if m.ConnectionID == senderID {
			self = m
			found = true
			continue
		}
		others = append(others, m)
	}
	if !found {
		return domain.Member{}, nil, domain.ErrNotInRoom
	}
	return self, others, nil
}

// UpdateProfile merges fields into the connection's member entry and returns
// the room plus the other members to notify.
func (r *Registry) UpdateProfile(connectionID string, p domain.Profile) (string, domain.Member, []domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.index[connectionID]
	if !ok {
		return "", domain.Member{}, nil, domain.ErrNotInRoom
	}
	rm := r.rooms[roomID]

	var (
		self   domain.Member
		others = make([]domain.Member, 0, len(rm.members)-1)
	)
	for i, m := range rm.members {
		if m.ConnectionID == connectionID {
			rm.members[i].Profile = m.Profile.Merge(p)
			self = rm.members[i]
			continue
		}
		others = append(others, m)
	}
	return roomID, self, others, nil
}

// ForceEnd deletes the room unconditionally and returns who was removed so
// the caller can notify them. A second call for the same room reports
// ErrRoomNotFound, which callers swallow as already-resolved.
func (r *Registry) ForceEnd(roomID string) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	for _, m := range rm.members {
		delete(r.index, m.ConnectionID)
	}
	delete(r.rooms, roomID)
	return rm.members, nil
}

// ListRooms is a side-effect-free snapshot for the admin surface.
func (r *Registry) ListRooms() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RoomInfo, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, domain.RoomInfo{
			ID:           rm.id,
			Participants: len(rm.members),
			Metadata:     rm.metadata,
			CreatedAt:    rm.createdAt,
		})
	}
	return out
}

func (r *Registry) RoomInfo(roomID string) (domain.RoomInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	return domain.RoomInfo{
		ID:           rm.id,
		Participants: len(rm.members),
		Metadata:     rm.metadata,
		CreatedAt:    rm.createdAt,
	}, nil
}

func copyMembers(ms []domain.Member) []domain.Member {
	out := make([]domain.Member, len(ms))
	copy(out, ms)
	return out
}
