package domain

import "time"

type RoomKind string

const (
	KindAppointment  RoomKind = "appointment"
	KindConsultation RoomKind = "consultation"
	KindAdHoc        RoomKind = "ad-hoc"
)

// AppointmentCapacity is the fixed participant limit for scheduled
// appointment rooms: one doctor, one patient.
const AppointmentCapacity = 2

type Role string

const (
	RoleDoctor      Role = "doctor"
	RolePatient     Role = "patient"
	RoleUnspecified Role = "unspecified"
)

type Profile struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Role        Role   `json:"role,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Merge returns p with the non-empty fields of other applied on top.
func (p Profile) Merge(other Profile) Profile {
	if other.ID != "" {
		p.ID = other.ID
	}
	if other.DisplayName != "" {
		p.DisplayName = other.DisplayName
	}
	if other.Role != "" {
		p.Role = other.Role
	}
	if other.AvatarURL != "" {
		p.AvatarURL = other.AvatarURL
	}
	return p
}

// RoomMetadata is attached by the creator on the first join and frozen for
// the lifetime of the room. Membership changes never touch it.
type RoomMetadata struct {
	Kind            RoomKind   `json:"kind"`
	DoctorID        string     `json:"doctorId,omitempty"`
	PatientID       string     `json:"patientId,omitempty"`
	AppointmentID   string     `json:"appointmentId,omitempty"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
}

// Member is one live connection inside a room.
type Member struct {
	ConnectionID string  `json:"connectionId"`
	Profile      Profile `json:"profile"`
}

// RoomInfo is the read-only view served on the admin surface.
type RoomInfo struct {
	ID           string        `json:"id"`
	Participants int           `json:"participants"`
	Metadata     *RoomMetadata `json:"metadata,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// CallSummary is handed off to the external records service after an
// appointment ends. The signaling core never persists it.
type CallSummary struct {
	RoomID        string    `json:"roomId"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	FollowUp      string    `json:"followUp,omitempty"`
	EndedAt       time.Time `json:"endedAt"`
}
