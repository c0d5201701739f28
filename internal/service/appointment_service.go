package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/telecare-platform/signaling-service/internal/domain"
	"github.com/telecare-platform/signaling-service/internal/registry"
)

// AppointmentService is the lifecycle layer for rooms created with
// kind == "appointment": medical-note relay and the authoritative one-shot
// end of the consultation.
type AppointmentService struct {
	registry *registry.Registry
	sender   PeerSender
	events   EventSink
	records  RecordsSink // nil when no records service is configured

	recordsTimeout time.Duration
}

func NewAppointmentService(reg *registry.Registry, sender PeerSender, events EventSink, records RecordsSink) *AppointmentService {
	return &AppointmentService{
		registry:       reg,
		sender:         sender,
		events:         events,
		records:        records,
		recordsTimeout: 10 * time.Second,
	}
}

// RelayRecord forwards start/update medical-record payloads to the other
// participants, stamped with the sender id and a server timestamp. The notes
// body is opaque; persistence is the record-keeping collaborator's job.
func (s *AppointmentService) RelayRecord(senderID, kind string, p domain.MedicalRecordPayload) error {
	self, others, err := s.registry.Peers(p.RoomID, senderID)
	if err != nil {
		return err
	}
	if err := s.requireAppointment(p.RoomID); err != nil {
		return err
	}
	p.From = self.ConnectionID
	p.RecordedAtUnix = time.Now().Unix()

	ev := domain.NewEvent(kind, p)
	for _, m := range others {
		_ = s.sender.Send(m.ConnectionID, ev)
	}
	return nil
}

// End broadcasts appointment-ended to every member including the sender,
// then tears the room down. The teardown is one-shot and idempotent: a retry
// against an already-deleted room finds nothing and does nothing.
func (s *AppointmentService) End(senderID string, p domain.EndAppointmentPayload) error {
	_, _, err := s.registry.Peers(p.RoomID, senderID)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return nil
	case err != nil:
		return err
	}
	meta, err := s.registry.Metadata(p.RoomID)
	if err != nil {
		return nil
	}
	if meta == nil || meta.Kind != domain.KindAppointment {
		return domain.ErrNotAppointment
	}

	// ForceEnd is the serialization point: under a concurrent double-end only
	// one caller gets the member list, so exactly one broadcast goes out.
	removed, err := s.registry.ForceEnd(p.RoomID)
	if err != nil {
		return nil
	}

	endedAt := time.Now()
	ev := domain.NewEvent(domain.EventAppointmentEnded, domain.AppointmentEndedPayload{
		RoomID:      p.RoomID,
		Summary:     p.Summary,
		FollowUp:    p.FollowUp,
		EndedAtUnix: endedAt.Unix(),
	})
	for _, m := range removed {
		_ = s.sender.Send(m.ConnectionID, ev)
	}

	s.submitSummary(domain.CallSummary{
		RoomID:        p.RoomID,
		AppointmentID: meta.AppointmentID,
		Summary:       p.Summary,
		FollowUp:      p.FollowUp,
		EndedAt:       endedAt,
	})

	if s.events != nil {
		s.events.Publish(LifecycleRoomClosed, LifecycleEvent{RoomID: p.RoomID, Reason: "appointment-ended"})
	}
	return nil
}

// submitSummary hands the summary to the records service without blocking
// teardown; failures are logged and dropped.
func (s *AppointmentService) submitSummary(sum domain.CallSummary) {
	if s.records == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.recordsTimeout)
		defer cancel()
		if err := s.records.SubmitSummary(ctx, sum); err != nil {
			slog.Warn("records summary submit failed", "room", sum.RoomID, "appointment", sum.AppointmentID, "err", err)
		}
	}()
}

func (s *AppointmentService) requireAppointment(roomID string) error {
	meta, err := s.registry.Metadata(roomID)
	if err != nil {
		return err
	}
	if meta == nil || meta.Kind != domain.KindAppointment {
		return domain.ErrNotAppointment
	}
	return nil
}
