package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	store  Store
	locker redisclient.Locker
	cfg    config.Config
	now    func() time.Time
}

func NewService(store Store, locker redisclient.Locker, cfg config.Config) *Service {
	if cfg.ClinicLocation == nil {
		cfg.ClinicLocation = time.UTC
	}
	return &Service{
		store:  store,
		locker: locker,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for timestamps and for rejecting
// intervals that start in the past.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Location is the time zone calendar dates and weekdays are resolved in.
func (s *Service) Location() *time.Location {
	return s.cfg.ClinicLocation
}

type CreateRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Start     time.Time
	End       time.Time
	Reason    *string
	Channel   Channel
	CreatedBy Actor
}

// CreateAppointment books [Start, End) with the doctor. The overlap check and the
// insert run under the doctor's lock inside one transaction.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	iv := Interval{Start: req.Start, End: req.End}
	if err := s.checkBookable(iv); err != nil {
		return nil, err
	}

	channel := req.Channel
	if channel == "" {
		channel = ChannelInPerson
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}

	var created *Appointment

	err := s.withDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		return s.store.WithTx(lockCtx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.GetDoctor(ctx, req.DoctorID); err != nil {
				return err
			}
			if _, err := tx.GetPatient(ctx, req.PatientID); err != nil {
				return err
			}

			if err := tx.LockDoctor(ctx, req.DoctorID); err != nil {
				return err
			}
			if err := s.checkWorkingHours(ctx, tx, req.DoctorID, iv); err != nil {
				return err
			}
			overlap, err := tx.HasOverlap(ctx, req.DoctorID, iv, nil)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if overlap {
				return ErrSlotUnavailable
			}

			now := s.now()
			appt := &Appointment{
				ID:        uuid.New(),
				PatientID: req.PatientID,
				DoctorID:  req.DoctorID,
				StartAt:   iv.Start.UTC(),
				EndAt:     iv.End.UTC(),
				Status:    StatusScheduled,
				Reason:    req.Reason,
				CreatedBy: req.CreatedBy.UserID,
				Channel:   channel,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertAppointment(ctx, appt); err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}

			newValue := *statusValue(StatusScheduled) + ";" + appt.Interval().String()
			if err := tx.AppendHistory(ctx, &HistoryEntry{
				AppointmentID: appt.ID,
				EventType:     HistoryCreate,
				NewValue:      &newValue,
				ActorUserID:   req.CreatedBy.UserID,
				CreatedAt:     now,
			}); err != nil {
				return fmt.Errorf("append history: %w", err)
			}

			if err := s.emit(ctx, tx, newEvent(EventAppointmentCreated, appt, req.CreatedBy, now)); err != nil {
				return err
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Time("start", created.StartAt).
		Msg("appointment created")

	return created, nil
}

// RescheduleAppointment moves an appointment to a new interval and marks it rescheduled.
// The appointment itself never blocks its own new interval.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time, actor Actor, notes *string) (*Appointment, error) {
	iv := Interval{Start: newStart, End: newEnd}
	if err := s.checkBookable(iv); err != nil {
		return nil, err
	}

	// The doctor of an appointment never changes, so it is safe to read it
	// before taking the doctor lock.
	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	var old Interval

	err = s.withDoctorLock(ctx, current.DoctorID, func(lockCtx context.Context) error {
		return s.store.WithTx(lockCtx, func(ctx context.Context, tx Tx) error {
			appt, err := tx.GetAppointmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := checkTransition(appt.Status, StatusRescheduled); err != nil {
				return err
			}

			if err := tx.LockDoctor(ctx, appt.DoctorID); err != nil {
				return err
			}
			if err := s.checkWorkingHours(ctx, tx, appt.DoctorID, iv); err != nil {
				return err
			}
			overlap, err := tx.HasOverlap(ctx, appt.DoctorID, iv, &appt.ID)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if overlap {
				return ErrSlotUnavailable
			}

			now := s.now()
			old = appt.Interval()
			next := Interval{Start: iv.Start.UTC(), End: iv.End.UTC()}

			u, err := tx.UpdateAppointment(ctx, appt.ID, next, StatusRescheduled, now)
			if err != nil {
				return fmt.Errorf("update appointment: %w", err)
			}

			if err := tx.AppendHistory(ctx, &HistoryEntry{
				AppointmentID: appt.ID,
				EventType:     HistoryReschedule,
				OldValue:      intervalValue(old),
				NewValue:      intervalValue(next),
				ActorUserID:   actor.UserID,
				Notes:         notes,
				CreatedAt:     now,
			}); err != nil {
				return fmt.Errorf("append history: %w", err)
			}

			ev := newEvent(EventAppointmentRescheduled, u, actor, now)
			oldStatus := appt.Status
			ev.OldStatus = &oldStatus
			ev.OldStart = &old.Start
			ev.OldEnd = &old.End
			if err := s.emit(ctx, tx, ev); err != nil {
				return err
			}

			updated = u
			return nil
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("appointment_id", updated.ID.String()).
		Str("doctor_id", updated.DoctorID.String()).
		Time("old_start", old.Start).
		Time("start", updated.StartAt).
		Msg("appointment rescheduled")

	return updated, nil
}

// UpdateStatus applies one lifecycle transition. The rescheduled status is only
// reachable through RescheduleAppointment because it also rewrites the interval.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor Actor, notes *string) (*Appointment, error) {
	return s.changeStatus(ctx, id, to, actor, notes, historyEventFor(to))
}

// CancelAppointment is UpdateStatus to cancelled. The interval becomes free again.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, actor Actor, notes *string) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, actor, notes)
}

// DeleteAppointment is the only removal path: the row is kept, cancelled, and a
// delete entry is written to its history.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID, actor Actor, notes *string) (*Appointment, error) {
	return s.changeStatus(ctx, id, StatusCancelled, actor, notes, HistoryDelete)
}

func (s *Service) changeStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor Actor, notes *string, eventType HistoryEventType) (*Appointment, error) {
	var updated *Appointment
	var from AppointmentStatus

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = appt.Status

		if to == StatusRescheduled || !to.Valid() {
			return &TransitionError{From: from, To: to}
		}
		if err := checkTransition(from, to); err != nil {
			return err
		}

		now := s.now()
		u, err := tx.UpdateAppointment(ctx, appt.ID, appt.Interval(), to, now)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		if err := tx.AppendHistory(ctx, &HistoryEntry{
			AppointmentID: appt.ID,
			EventType:     eventType,
			OldValue:      statusValue(from),
			NewValue:      statusValue(to),
			ActorUserID:   actor.UserID,
			Notes:         notes,
			CreatedAt:     now,
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		evType := EventAppointmentStatusChanged
		if to == StatusCancelled {
			evType = EventAppointmentCancelled
		}
		ev := newEvent(evType, u, actor, now)
		ev.OldStatus = &from
		if err := s.emit(ctx, tx, ev); err != nil {
			return err
		}

		updated = u
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("event", string(eventType)).
		Msg("appointment status changed")

	return updated, nil
}

// ListAvailableSlots derives the slots of day from the doctor's weekly schedule.
// Only the calendar date of day is used; it is taken as a date in the clinic's
// time zone. A day without a schedule yields an empty list, not an error.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time, exclude *uuid.UUID) ([]TimeSlot, error) {
	loc := s.Location()
	y, m, d := day.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, loc)

	slots := []TimeSlot{}
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetDoctor(ctx, doctorID); err != nil {
			return err
		}

		ws, err := tx.GetWeeklySchedule(ctx, doctorID, day.Weekday())
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		window := ws.Window(day, loc)
		busy, err := tx.ListBusyIntervals(ctx, doctorID, window, exclude)
		if err != nil {
			return fmt.Errorf("list busy intervals: %w", err)
		}

		slots = append(slots, GenerateSlots(ws, day, loc, busy)...)
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	return slots, nil
}

// HasOverlap is the read-only form of the overlap check, for callers that want
// to validate a candidate interval before submitting it. It is advisory only;
// CreateAppointment and RescheduleAppointment repeat the check under lock.
func (s *Service) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	iv := Interval{Start: start, End: end}
	if !iv.Valid() {
		return false, ErrInvalidInterval
	}

	var overlap bool
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		overlap, err = tx.HasOverlap(ctx, doctorID, iv, exclude)
		return err
	})
	if err != nil {
		return false, classify(err)
	}
	return overlap, nil
}

// GetAppointment returns one appointment, cancelled ones included.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		appt, err = tx.GetAppointment(ctx, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return appt, nil
}

// ListAppointments pages through appointments matching f, latest start first.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []Appointment
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		list, err = tx.ListAppointments(ctx, f)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if list == nil {
		list = []Appointment{}
	}
	return list, nil
}

// AppointmentHistory returns the audit trail of an appointment, oldest first.
func (s *Service) AppointmentHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetAppointment(ctx, id); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListHistory(ctx, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// checkBookable rejects empty or inverted intervals and intervals that start
// before now.
func (s *Service) checkBookable(iv Interval) error {
	if !iv.Valid() {
		return ErrInvalidInterval
	}
	if iv.Start.Before(s.now()) {
		return fmt.Errorf("%w: start %s is in the past", ErrInvalidInterval, iv.Start.UTC().Format(time.RFC3339))
	}
	return nil
}

func (s *Service) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithDoctorLock(ctx, doctorID, fn)
}

func (s *Service) checkWorkingHours(ctx context.Context, tx Tx, doctorID uuid.UUID, iv Interval) error {
	if !s.cfg.EnforceWorkingHours {
		return nil
	}

	loc := s.Location()
	day := iv.Start.In(loc)
	ws, err := tx.GetWeeklySchedule(ctx, doctorID, day.Weekday())
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: doctor does not work on %s", ErrSlotUnavailable, day.Weekday())
	}
	if err != nil {
		return err
	}
	if !ws.Window(day, loc).Contains(iv) {
		return fmt.Errorf("%w: outside working hours %s-%s", ErrSlotUnavailable, ws.StartTime, ws.EndTime)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, tx Tx, ev Event) error {
	row, err := ev.toLog()
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if err := tx.InsertEvent(ctx, row); err != nil {
		return fmt.Errorf("insert %s event: %w", ev.Type, err)
	}
	return nil
}
