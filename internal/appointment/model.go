package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusAttended    AppointmentStatus = "attended"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusAttended, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

type Channel string

const (
	ChannelInPerson Channel = "presencial"
	ChannelVirtual  Channel = "virtual"
	ChannelPhone    Channel = "telefono"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelInPerson, ChannelVirtual, ChannelPhone:
		return true
	}
	return false
}

// HistoryEventType is the kind of change an AppointmentHistoryEntry records.
type HistoryEventType string

const (
	HistoryCreate       HistoryEventType = "create"
	HistoryStatusChange HistoryEventType = "status_change"
	HistoryReschedule   HistoryEventType = "reschedule"
	HistoryCancel       HistoryEventType = "cancel"
	HistoryDelete       HistoryEventType = "delete"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Actor is the principal supplied by the identity provider for a mutating call.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

type Doctor struct {
	ID            uuid.UUID
	FirstName     string
	LastName      string
	LicenseNumber string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklySchedule is a doctor's recurring working window for one weekday (0 = Sunday).
type WeeklySchedule struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	Weekday         time.Weekday
	StartTime       TimeOfDay
	EndTime         TimeOfDay
	SlotDurationMin int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartAt   time.Time
	EndAt     time.Time
	Status    AppointmentStatus
	Reason    *string
	CreatedBy uuid.UUID
	Channel   Channel
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartAt, End: a.EndAt}
}

// HistoryEntry is an append-only audit record. Rows are never updated or deleted.
type HistoryEntry struct {
	ID            int64
	AppointmentID uuid.UUID
	EventType     HistoryEventType
	OldValue      *string
	NewValue      *string
	ActorUserID   uuid.UUID
	Notes         *string
	CreatedAt     time.Time
}

// TimeSlot is derived from a WeeklySchedule and the booked intervals of one date. It is never stored.
type TimeSlot struct {
	Date      string
	Start     time.Time
	End       time.Time
	Available bool
}

// EventLog is an outbox row consumed by the event relay.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// ListFilter narrows ListAppointments. Zero values mean "no filter".
type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
