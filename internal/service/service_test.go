package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telecare-platform/signaling-service/internal/domain"
	"github.com/telecare-platform/signaling-service/internal/registry"
	"github.com/telecare-platform/signaling-service/internal/service"
)

// fakeSender records every outbound event per connection.
type fakeSender struct {
	mu   sync.Mutex
	sent map[string][]domain.Event
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]domain.Event)}
}

func (f *fakeSender) Send(connectionID string, ev domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connectionID] = append(f.sent[connectionID], ev)
	return nil
}

func (f *fakeSender) events(connectionID string) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Event(nil), f.sent[connectionID]...)
}

func (f *fakeSender) last(t *testing.T, connectionID string) domain.Event {
	t.Helper()
	evs := f.events(connectionID)
	require.NotEmpty(t, evs, "no events sent to %s", connectionID)
	return evs[len(evs)-1]
}

func (f *fakeSender) countType(connectionID, typ string) int {
	n := 0
	for _, ev := range f.events(connectionID) {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type fakeRecords struct {
	summaries chan domain.CallSummary
}

func (f *fakeRecords) SubmitSummary(_ context.Context, s domain.CallSummary) error {
	f.summaries <- s
	return nil
}

func decodePayload[T any](t *testing.T, ev domain.Event) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.Payload, &out))
	return out
}

func joinPayload(roomID string, meta *domain.RoomMetadata) domain.JoinRoomPayload {
	return domain.JoinRoomPayload{RoomID: roomID, Metadata: meta}
}

func appointmentMeta() *domain.RoomMetadata {
	return &domain.RoomMetadata{Kind: domain.KindAppointment, AppointmentID: "apt-77"}
}

func TestMemberJoinFlow(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	created := decodePayload[domain.RoomCreatedPayload](t, sender.last(t, "a"))
	assert.Equal(t, domain.EventRoomCreated, sender.last(t, "a").Type)
	assert.Equal(t, "a", created.ConnectionID)
	require.NotNil(t, created.Metadata)
	assert.Equal(t, domain.KindAppointment, created.Metadata.Kind)

	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))

	// joiner gets the existing roster
	joinEv := sender.last(t, "b")
	assert.Equal(t, domain.EventPeerJoined, joinEv.Type)
	roster := decodePayload[domain.PeerJoinedPayload](t, joinEv)
	require.Len(t, roster.Peers, 1)
	assert.Equal(t, "a", roster.Peers[0].ConnectionID)

	// existing member gets the new peer
	peerEv := sender.last(t, "a")
	assert.Equal(t, domain.EventPeerJoined, peerEv.Type)
	newcomer := decodePayload[domain.PeerJoinedPayload](t, peerEv)
	require.Len(t, newcomer.Peers, 1)
	assert.Equal(t, "b", newcomer.Peers[0].ConnectionID)

	// third joiner is rejected and only the rejected joiner hears about it
	require.NoError(t, members.Join("c", joinPayload("apt-1", nil)))
	assert.Equal(t, domain.EventRoomFull, sender.last(t, "c").Type)
	assert.Equal(t, 0, sender.countType("a", domain.EventRoomFull))
	assert.Equal(t, 0, sender.countType("b", domain.EventRoomFull))

	info, err := reg.RoomInfo("apt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Participants)
}

func TestSignalRelayTargeting(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)
	signals := service.NewSignalService(reg, sender)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))
	require.NoError(t, members.Join("x", joinPayload("other", nil)))

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	require.NoError(t, signals.RelaySignal("a", domain.EventOffer, domain.SignalPayload{RoomID: "apt-1", SDP: sdp}))

	ev := sender.last(t, "b")
	require.Equal(t, domain.EventOffer, ev.Type)
	got := decodePayload[domain.SignalPayload](t, ev)
	assert.Equal(t, "a", got.From)
	assert.JSONEq(t, string(sdp), string(got.SDP))

	// nobody outside the room sees signaling traffic
	assert.Equal(t, 0, sender.countType("x", domain.EventOffer))
	assert.Equal(t, 0, sender.countType("a", domain.EventOffer))
}

func TestSignalRelayUnauthorized(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)
	signals := service.NewSignalService(reg, sender)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))

	// a member of another room must not inject into apt-1
	require.NoError(t, members.Join("intruder", joinPayload("other", nil)))
	err := signals.RelaySignal("intruder", domain.EventOffer, domain.SignalPayload{RoomID: "apt-1"})
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	err = signals.RelayChat("intruder", domain.ChatPayload{RoomID: "apt-1", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	// unknown room
	err = signals.RelaySignal("a", domain.EventAnswer, domain.SignalPayload{RoomID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	assert.Equal(t, 0, sender.countType("a", domain.EventOffer))
	assert.Equal(t, 0, sender.countType("b", domain.EventOffer))
	assert.Equal(t, 0, sender.countType("b", domain.EventChatMessage))
}

func TestChatBroadcast(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)
	signals := service.NewSignalService(reg, sender)

	require.NoError(t, members.Join("a", joinPayload("lobby", nil)))
	require.NoError(t, members.Join("b", joinPayload("lobby", nil)))
	require.NoError(t, members.Join("c", joinPayload("lobby", nil)))

	require.NoError(t, signals.RelayChat("a", domain.ChatPayload{RoomID: "lobby", Text: "  hello  "}))

	for _, id := range []string{"b", "c"} {
		ev := sender.last(t, id)
		require.Equal(t, domain.EventChatMessage, ev.Type)
		msg := decodePayload[domain.ChatPayload](t, ev)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "a", msg.From)
		assert.NotZero(t, msg.SentAtUnix)
	}
	assert.Equal(t, 0, sender.countType("a", domain.EventChatMessage))

	// blank messages are dropped
	require.NoError(t, signals.RelayChat("a", domain.ChatPayload{RoomID: "lobby", Text: "   "}))
	assert.Equal(t, 1, sender.countType("b", domain.EventChatMessage))
}

func TestUpdateProfileBroadcast(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))

	require.NoError(t, members.UpdateProfile("a", domain.Profile{DisplayName: "Dr. Gray", Role: domain.RoleDoctor}))

	ev := sender.last(t, "b")
	require.Equal(t, domain.EventProfileUpdated, ev.Type)
	upd := decodePayload[domain.ProfileUpdatedPayload](t, ev)
	assert.Equal(t, "a", upd.ConnectionID)
	assert.Equal(t, "Dr. Gray", upd.Profile.DisplayName)

	// profile update without a room is reported, not broadcast
	err := members.UpdateProfile("ghost", domain.Profile{DisplayName: "x"})
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestDisconnectFlow(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))

	members.Disconnect("b")
	ev := sender.last(t, "a")
	require.Equal(t, domain.EventPeerLeft, ev.Type)
	left := decodePayload[domain.PeerLeftPayload](t, ev)
	assert.Equal(t, "b", left.ConnectionID)

	info, err := reg.RoomInfo("apt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Participants)

	// last member out deletes the room; disconnect without a room is a no-op
	members.Disconnect("a")
	_, err = reg.RoomInfo("apt-1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	members.Disconnect("a")
}

func TestCloseRoom(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)

	require.NoError(t, members.Join("a", joinPayload("lobby", nil)))
	require.NoError(t, members.Join("b", joinPayload("lobby", nil)))

	require.NoError(t, members.CloseRoom("lobby", "admin"))
	for _, id := range []string{"a", "b"} {
		ev := sender.last(t, id)
		require.Equal(t, domain.EventRoomEnded, ev.Type)
		ended := decodePayload[domain.RoomEndedPayload](t, ev)
		assert.Equal(t, "lobby", ended.RoomID)
	}

	// already gone: swallowed
	require.NoError(t, members.CloseRoom("lobby", "admin"))
}

func TestRecordRelayRequiresAppointment(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)
	appts := service.NewAppointmentService(reg, sender, nil, nil)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))
	require.NoError(t, members.Join("c", joinPayload("adhoc", nil)))
	require.NoError(t, members.Join("d", joinPayload("adhoc", nil)))

	notes := json.RawMessage(`{"text":"bp 120/80"}`)
	require.NoError(t, appts.RelayRecord("a", domain.EventUpdateMedicalRecord, domain.MedicalRecordPayload{
		RoomID:        "apt-1",
		AppointmentID: "apt-77",
		Notes:         notes,
	}))
	ev := sender.last(t, "b")
	require.Equal(t, domain.EventUpdateMedicalRecord, ev.Type)
	rec := decodePayload[domain.MedicalRecordPayload](t, ev)
	assert.Equal(t, "a", rec.From)
	assert.NotZero(t, rec.RecordedAtUnix)
	assert.JSONEq(t, string(notes), string(rec.Notes))

	// medical-record events are an appointment-only surface
	err := appts.RelayRecord("c", domain.EventStartMedicalRecord, domain.MedicalRecordPayload{RoomID: "adhoc"})
	assert.ErrorIs(t, err, domain.ErrNotAppointment)
	assert.Equal(t, 0, sender.countType("d", domain.EventStartMedicalRecord))
}

func TestEndAppointment(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	records := &fakeRecords{summaries: make(chan domain.CallSummary, 1)}
	members := service.NewMemberService(reg, sender, nil)
	appts := service.NewAppointmentService(reg, sender, nil, records)

	require.NoError(t, members.Join("a", joinPayload("apt-1", appointmentMeta())))
	require.NoError(t, members.Join("b", joinPayload("apt-1", nil)))

	end := domain.EndAppointmentPayload{RoomID: "apt-1", Summary: "all good", FollowUp: "2 weeks"}
	require.NoError(t, appts.End("a", end))

	// broadcast reaches all members including the sender
	for _, id := range []string{"a", "b"} {
		ev := sender.last(t, id)
		require.Equal(t, domain.EventAppointmentEnded, ev.Type)
		ended := decodePayload[domain.AppointmentEndedPayload](t, ev)
		assert.Equal(t, "all good", ended.Summary)
		assert.Equal(t, "2 weeks", ended.FollowUp)
		assert.NotZero(t, ended.EndedAtUnix)
	}

	// the room is gone
	_, err := reg.RoomInfo("apt-1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	// summary handed off asynchronously
	select {
	case sum := <-records.summaries:
		assert.Equal(t, "apt-1", sum.RoomID)
		assert.Equal(t, "apt-77", sum.AppointmentID)
		assert.Equal(t, "all good", sum.Summary)
	case <-time.After(2 * time.Second):
		t.Fatal("summary never submitted")
	}

	// retry is a no-op: exactly one appointment-ended per member
	require.NoError(t, appts.End("a", end))
	assert.Equal(t, 1, sender.countType("a", domain.EventAppointmentEnded))
	assert.Equal(t, 1, sender.countType("b", domain.EventAppointmentEnded))
}

func TestEndAppointmentGuards(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)
	appts := service.NewAppointmentService(reg, sender, nil, nil)

	require.NoError(t, members.Join("a", joinPayload("adhoc", nil)))
	err := appts.End("a", domain.EndAppointmentPayload{RoomID: "adhoc"})
	assert.ErrorIs(t, err, domain.ErrNotAppointment)
	_, rerr := reg.RoomInfo("adhoc")
	assert.NoError(t, rerr, "non-appointment room must survive end-appointment")

	require.NoError(t, members.Join("b", joinPayload("apt-1", appointmentMeta())))
	err = appts.End("a", domain.EndAppointmentPayload{RoomID: "apt-1"})
	assert.ErrorIs(t, err, domain.ErrNotInRoom, "only members may end the appointment")
}

// End-to-end walk through the consultation scenario: create, join, reject,
// signal, disconnect, cleanup.
func TestConsultationScenario(t *testing.T) {
	reg := registry.New(0)
	sender := newFakeSender()
	members := service.NewMemberService(reg, sender, nil)
	signals := service.NewSignalService(reg, sender)

	require.NoError(t, members.Join("A", joinPayload("apt-1", appointmentMeta())))
	assert.Equal(t, domain.EventRoomCreated, sender.last(t, "A").Type)

	require.NoError(t, members.Join("B", joinPayload("apt-1", nil)))
	assert.Equal(t, domain.EventPeerJoined, sender.last(t, "A").Type)

	require.NoError(t, members.Join("C", joinPayload("apt-1", nil)))
	assert.Equal(t, domain.EventRoomFull, sender.last(t, "C").Type)
	info, err := reg.RoomInfo("apt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Participants)

	require.NoError(t, signals.RelaySignal("A", domain.EventOffer, domain.SignalPayload{
		RoomID: "apt-1",
		SDP:    json.RawMessage(`{"type":"offer"}`),
	}))
	assert.Equal(t, 1, sender.countType("B", domain.EventOffer))
	assert.Equal(t, 0, sender.countType("C", domain.EventOffer))

	members.Disconnect("B")
	assert.Equal(t, domain.EventPeerLeft, sender.last(t, "A").Type)
	info, err = reg.RoomInfo("apt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Participants)

	members.Disconnect("A")
	_, err = reg.RoomInfo("apt-1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
