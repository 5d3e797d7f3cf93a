package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
)

// Event is the payload handed to the notification dispatcher through the outbox.
type Event struct {
	Type          string             `json:"type"`
	AppointmentID uuid.UUID          `json:"appointment_id"`
	DoctorID      uuid.UUID          `json:"doctor_id"`
	PatientID     uuid.UUID          `json:"patient_id"`
	OldStatus     *AppointmentStatus `json:"old_status,omitempty"`
	NewStatus     AppointmentStatus  `json:"new_status"`
	OldStart      *time.Time         `json:"old_start,omitempty"`
	OldEnd        *time.Time         `json:"old_end,omitempty"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	ActorUserID   uuid.UUID          `json:"actor_user_id"`
	ActorRole     Role               `json:"actor_role,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func newEvent(eventType string, a *Appointment, actor Actor, at time.Time) Event {
	return Event{
		Type:          eventType,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		NewStatus:     a.Status,
		Start:         a.StartAt,
		End:           a.EndAt,
		ActorUserID:   actor.UserID,
		ActorRole:     actor.Role,
		OccurredAt:    at,
	}
}

func (e Event) toLog() (EventLog, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return EventLog{}, err
	}
	id := e.AppointmentID
	return EventLog{
		EventType:     e.Type,
		AppointmentID: &id,
		Payload:       data,
		CreatedAt:     e.OccurredAt,
	}, nil
}
