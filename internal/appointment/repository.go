package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store hands out transactions. The Scheduling Service is the only writer of
// appointments and their history, and every write goes through WithTx.
type Store interface {
	// WithTx runs fn in one read-write transaction: commit when fn returns nil,
	// rollback otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ReadOnly runs fn against a consistent snapshot.
	ReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx contains all DB interactions needed by the service inside one transaction.
type Tx interface {
	// LockDoctor serializes check-then-write for one doctor until the transaction ends.
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error

	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetAppointmentForUpdate also locks the row until the transaction ends.
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error)

	// For conflict checks
	HasOverlap(ctx context.Context, doctorID uuid.UUID, iv Interval, exclude *uuid.UUID) (bool, error)
	ListBusyIntervals(ctx context.Context, doctorID uuid.UUID, within Interval, exclude *uuid.UUID) ([]Interval, error)

	// Creation and updates
	InsertAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, id uuid.UUID, iv Interval, status AppointmentStatus, updatedAt time.Time) (*Appointment, error)

	// Audit trail
	AppendHistory(ctx context.Context, h *HistoryEntry) error
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error)

	// Weekly schedules
	GetWeeklySchedule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*WeeklySchedule, error)
	ListWeeklySchedules(ctx context.Context, doctorID uuid.UUID) ([]WeeklySchedule, error)
	UpsertWeeklySchedule(ctx context.Context, ws *WeeklySchedule) error
	DeleteWeeklySchedule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) error

	// Outbox
	InsertEvent(ctx context.Context, ev EventLog) error
}
