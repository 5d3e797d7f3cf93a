package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Reason    *string   `json:"reason,omitempty"`
	Channel   string    `json:"channel,omitempty"`
}

type RescheduleAppointmentRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Notes   *string   `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

// NotesRequest is the optional body of cancel and delete.
type NotesRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type ScheduleRequest struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	SlotDurationMin int    `json:"slot_duration_min"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason,omitempty"`
	Channel   string    `json:"channel"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type HistoryEntryResponse struct {
	ID          int64     `json:"id"`
	EventType   string    `json:"event_type"`
	OldValue    *string   `json:"old_value,omitempty"`
	NewValue    *string   `json:"new_value,omitempty"`
	ActorUserID uuid.UUID `json:"actor_user_id"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type SlotResponse struct {
	Date      string    `json:"date"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Available bool      `json:"available"`
}

type ScheduleResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Weekday         int       `json:"weekday"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	SlotDurationMin int       `json:"slot_duration_min"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		StartAt:   a.StartAt,
		EndAt:     a.EndAt,
		Status:    string(a.Status),
		Reason:    a.Reason,
		Channel:   string(a.Channel),
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toScheduleResponse(ws *appointment.WeeklySchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              ws.ID,
		DoctorID:        ws.DoctorID,
		Weekday:         int(ws.Weekday),
		StartTime:       ws.StartTime.String(),
		EndTime:         ws.EndTime.String(),
		SlotDurationMin: ws.SlotDurationMin,
	}
}
