package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements Store on Postgres. Writes run at READ COMMITTED; the
// per-doctor critical section is a transaction-scoped advisory lock, and the
// appointments exclusion constraint rejects anything that slips past it.
type PgStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPgStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PgStore {
	return &PgStore{pool: pool, lockTimeout: lockTimeout}
}

func (s *PgStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if s.lockTimeout > 0 {
			if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`,
				fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
				return fmt.Errorf("set lock_timeout: %w", err)
			}
		}
		return fn(ctx, &pgTx{tx: tx})
	})
	return mapPgError(err)
}

func (s *PgStore) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	return mapPgError(err)
}

// mapPgError turns contention and constraint failures into scheduling error kinds.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	case "23P01": // exclusion_violation
		return fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

const appointmentColumns = `id, patient_id, doctor_id, start_at, end_at, status, reason, created_by, channel, created_at, updated_at`

const scheduleColumns = `id, doctor_id, weekday, start_time, end_time, slot_duration_min, created_at, updated_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.LicenseNumber, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, channel string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartAt,
		&a.EndAt,
		&status,
		&a.Reason,
		&a.CreatedBy,
		&channel,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	a.Channel = Channel(channel)
	return &a, nil
}

func scanSchedule(row pgx.Row) (*WeeklySchedule, error) {
	var ws WeeklySchedule
	var weekday, duration int16
	var start, end pgtype.Time

	err := row.Scan(&ws.ID, &ws.DoctorID, &weekday, &start, &end, &duration, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	ws.Weekday = time.Weekday(weekday)
	ws.StartTime = timeOfDayFromPg(start)
	ws.EndTime = timeOfDayFromPg(end)
	ws.SlotDurationMin = int(duration)
	return &ws, nil
}

const microsPerMinute = int64(time.Minute / time.Microsecond)

func timeOfDayToPg(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsPerMinute, Valid: true}
}

func timeOfDayFromPg(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / microsPerMinute)
}

// Interface methods

func (t *pgTx) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "doctor:"+doctorID.String())
	if err != nil {
		return fmt.Errorf("lock doctor %s: %w", doctorID, err)
	}
	return nil
}

func (t *pgTx) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, first_name, last_name, license_number, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (t *pgTx) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (t *pgTx) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

func (t *pgTx) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var where []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DoctorID != nil {
		add("doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.From != nil {
		add("start_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("start_at < $%d", *f.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY start_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (t *pgTx) HasOverlap(ctx context.Context, doctorID uuid.UUID, iv Interval, exclude *uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND status <> 'cancelled'
			  AND start_at < $3
			  AND $2 < end_at
			  AND ($4::uuid IS NULL OR id <> $4::uuid)
		)
	`, doctorID, iv.Start, iv.End, exclude).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (t *pgTx) ListBusyIntervals(ctx context.Context, doctorID uuid.UUID, within Interval, exclude *uuid.UUID) ([]Interval, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT start_at, end_at
		FROM appointments
		WHERE doctor_id = $1
		  AND status <> 'cancelled'
		  AND start_at < $3
		  AND $2 < end_at
		  AND ($4::uuid IS NULL OR id <> $4::uuid)
		ORDER BY start_at
	`, doctorID, within.Start, within.End, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.PatientID, a.DoctorID, a.StartAt, a.EndAt, string(a.Status), a.Reason,
		a.CreatedBy, string(a.Channel), a.CreatedAt, a.UpdatedAt)
	return err
}

func (t *pgTx) UpdateAppointment(ctx context.Context, id uuid.UUID, iv Interval, status AppointmentStatus, updatedAt time.Time) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_at = $2,
		    end_at = $3,
		    status = $4,
		    updated_at = $5
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, iv.Start, iv.End, string(status), updatedAt)
	return scanAppointment(row)
}

func (t *pgTx) AppendHistory(ctx context.Context, h *HistoryEntry) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO appointment_history (appointment_id, event_type, old_value, new_value, actor_user_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, h.AppointmentID, string(h.EventType), h.OldValue, h.NewValue, h.ActorUserID, h.Notes, h.CreatedAt).Scan(&h.ID)
}

func (t *pgTx) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, appointment_id, event_type, old_value, new_value, actor_user_id, notes, created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var eventType string
		if err := rows.Scan(&h.ID, &h.AppointmentID, &eventType, &h.OldValue, &h.NewValue, &h.ActorUserID, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.EventType = HistoryEventType(eventType)
		result = append(result, h)
	}
	return result, rows.Err()
}

func (t *pgTx) GetWeeklySchedule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*WeeklySchedule, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedules
		WHERE doctor_id = $1 AND weekday = $2
	`, doctorID, int16(weekday))
	return scanSchedule(row)
}

func (t *pgTx) ListWeeklySchedules(ctx context.Context, doctorID uuid.UUID) ([]WeeklySchedule, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM doctor_schedules
		WHERE doctor_id = $1
		ORDER BY weekday, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklySchedule
	for rows.Next() {
		ws, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ws)
	}
	return result, rows.Err()
}

func (t *pgTx) UpsertWeeklySchedule(ctx context.Context, ws *WeeklySchedule) error {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO doctor_schedules (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (doctor_id, weekday) DO UPDATE
		SET start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    slot_duration_min = EXCLUDED.slot_duration_min,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+scheduleColumns,
		ws.ID, ws.DoctorID, int16(ws.Weekday), timeOfDayToPg(ws.StartTime), timeOfDayToPg(ws.EndTime),
		int16(ws.SlotDurationMin), ws.CreatedAt, ws.UpdatedAt)

	saved, err := scanSchedule(row)
	if err != nil {
		return err
	}
	*ws = *saved
	return nil
}

func (t *pgTx) DeleteWeeklySchedule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM doctor_schedules
		WHERE doctor_id = $1 AND weekday = $2
	`, doctorID, int16(weekday))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (t *pgTx) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
