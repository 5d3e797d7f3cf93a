// Package appointmenttest provides an in-memory appointment.Store for tests.
//
// Transactions are fully serialized and run against a copy of the data that
// replaces the committed state only when the transaction function succeeds,
// so a failure at any step leaves no trace. Individual Tx methods can be made
// to fail with FailOn.
package appointmenttest

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

var ErrReadOnly = errors.New("write in read-only transaction")

type scheduleKey struct {
	doctorID uuid.UUID
	weekday  time.Weekday
}

type state struct {
	doctors      map[uuid.UUID]appointment.Doctor
	patients     map[uuid.UUID]appointment.Patient
	appointments map[uuid.UUID]appointment.Appointment
	schedules    map[scheduleKey]appointment.WeeklySchedule
	history      []appointment.HistoryEntry
	events       []appointment.EventLog
	nextHistory  int64
	nextEvent    int64
}

func newState() *state {
	return &state{
		doctors:      make(map[uuid.UUID]appointment.Doctor),
		patients:     make(map[uuid.UUID]appointment.Patient),
		appointments: make(map[uuid.UUID]appointment.Appointment),
		schedules:    make(map[scheduleKey]appointment.WeeklySchedule),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.doctors {
		c.doctors[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.schedules {
		c.schedules[k] = v
	}
	c.history = append([]appointment.HistoryEntry(nil), s.history...)
	c.events = append([]appointment.EventLog(nil), s.events...)
	c.nextHistory = s.nextHistory
	c.nextEvent = s.nextEvent
	return c
}

type Store struct {
	mu       sync.Mutex
	data     *state
	failures map[string]error
	locks    map[uuid.UUID]int
}

func NewStore() *Store {
	return &Store{
		data:     newState(),
		failures: make(map[string]error),
		locks:    make(map[uuid.UUID]int),
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx appointment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &memTx{store: s, st: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx appointment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(ctx, &memTx{store: s, st: s.data.clone(), readOnly: true})
}

// FailOn makes every call to the named Tx method (e.g. "AppendHistory") return err.
// A nil err clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) AddDoctor(first, last string) appointment.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d := appointment.Doctor{
		ID:            uuid.New(),
		FirstName:     first,
		LastName:      last,
		LicenseNumber: "LIC-" + uuid.NewString()[:8],
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.data.doctors[d.ID] = d
	return d
}

func (s *Store) AddPatient(first, last string) appointment.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := appointment.Patient{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  last,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.patients[p.ID] = p
	return p
}

// Appointments returns the committed appointments ordered by start.
func (s *Store) Appointments() []appointment.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]appointment.Appointment, 0, len(s.data.appointments))
	for _, a := range s.data.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}

// History returns the committed history of one appointment.
func (s *Store) History(appointmentID uuid.UUID) []appointment.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []appointment.HistoryEntry
	for _, h := range s.data.history {
		if h.AppointmentID == appointmentID {
			out = append(out, h)
		}
	}
	return out
}

// Events returns the committed outbox rows in insertion order.
func (s *Store) Events() []appointment.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appointment.EventLog(nil), s.data.events...)
}

// DoctorLocks reports how many committed or rolled back transactions locked the doctor.
func (s *Store) DoctorLocks(doctorID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[doctorID]
}

type memTx struct {
	store    *Store
	st       *state
	readOnly bool
}

func (t *memTx) fail(method string) error {
	return t.store.failures[method]
}

func (t *memTx) write(method string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	return t.fail(method)
}

func (t *memTx) LockDoctor(_ context.Context, doctorID uuid.UUID) error {
	if err := t.fail("LockDoctor"); err != nil {
		return err
	}
	t.store.locks[doctorID]++
	return nil
}

func (t *memTx) GetDoctor(_ context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	if err := t.fail("GetDoctor"); err != nil {
		return nil, err
	}
	d, ok := t.st.doctors[id]
	if !ok {
		return nil, appointment.ErrDoctorNotFound
	}
	return &d, nil
}

func (t *memTx) GetPatient(_ context.Context, id uuid.UUID) (*appointment.Patient, error) {
	if err := t.fail("GetPatient"); err != nil {
		return nil, err
	}
	p, ok := t.st.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return &p, nil
}

func (t *memTx) GetAppointment(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if err := t.fail("GetAppointment"); err != nil {
		return nil, err
	}
	a, ok := t.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if err := t.fail("GetAppointmentForUpdate"); err != nil {
		return nil, err
	}
	return t.GetAppointment(ctx, id)
}

func (t *memTx) ListAppointments(_ context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	if err := t.fail("ListAppointments"); err != nil {
		return nil, err
	}

	var out []appointment.Appointment
	for _, a := range t.st.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.From != nil && a.StartAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.StartAt.Before(*f.To) {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.After(out[j].StartAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (t *memTx) busy(doctorID uuid.UUID, iv appointment.Interval, exclude *uuid.UUID) []appointment.Interval {
	var out []appointment.Interval
	for _, a := range t.st.appointments {
		if a.DoctorID != doctorID || a.Status == appointment.StatusCancelled {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.Interval().Overlaps(iv) {
			out = append(out, a.Interval())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (t *memTx) HasOverlap(_ context.Context, doctorID uuid.UUID, iv appointment.Interval, exclude *uuid.UUID) (bool, error) {
	if err := t.fail("HasOverlap"); err != nil {
		return false, err
	}
	return len(t.busy(doctorID, iv, exclude)) > 0, nil
}

func (t *memTx) ListBusyIntervals(_ context.Context, doctorID uuid.UUID, within appointment.Interval, exclude *uuid.UUID) ([]appointment.Interval, error) {
	if err := t.fail("ListBusyIntervals"); err != nil {
		return nil, err
	}
	return t.busy(doctorID, within, exclude), nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *appointment.Appointment) error {
	if err := t.write("InsertAppointment"); err != nil {
		return err
	}
	t.st.appointments[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAppointment(_ context.Context, id uuid.UUID, iv appointment.Interval, status appointment.AppointmentStatus, updatedAt time.Time) (*appointment.Appointment, error) {
	if err := t.write("UpdateAppointment"); err != nil {
		return nil, err
	}
	a, ok := t.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.StartAt = iv.Start
	a.EndAt = iv.End
	a.Status = status
	a.UpdatedAt = updatedAt
	t.st.appointments[id] = a
	return &a, nil
}

func (t *memTx) AppendHistory(_ context.Context, h *appointment.HistoryEntry) error {
	if err := t.write("AppendHistory"); err != nil {
		return err
	}
	if _, ok := t.st.appointments[h.AppointmentID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	t.st.nextHistory++
	h.ID = t.st.nextHistory
	t.st.history = append(t.st.history, *h)
	return nil
}

func (t *memTx) ListHistory(_ context.Context, appointmentID uuid.UUID) ([]appointment.HistoryEntry, error) {
	if err := t.fail("ListHistory"); err != nil {
		return nil, err
	}
	var out []appointment.HistoryEntry
	for _, h := range t.st.history {
		if h.AppointmentID == appointmentID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *memTx) GetWeeklySchedule(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) (*appointment.WeeklySchedule, error) {
	if err := t.fail("GetWeeklySchedule"); err != nil {
		return nil, err
	}
	ws, ok := t.st.schedules[scheduleKey{doctorID, weekday}]
	if !ok {
		return nil, appointment.ErrScheduleNotFound
	}
	return &ws, nil
}

func (t *memTx) ListWeeklySchedules(_ context.Context, doctorID uuid.UUID) ([]appointment.WeeklySchedule, error) {
	if err := t.fail("ListWeeklySchedules"); err != nil {
		return nil, err
	}
	var out []appointment.WeeklySchedule
	for k, ws := range t.st.schedules {
		if k.doctorID == doctorID {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (t *memTx) UpsertWeeklySchedule(_ context.Context, ws *appointment.WeeklySchedule) error {
	if err := t.write("UpsertWeeklySchedule"); err != nil {
		return err
	}
	if _, ok := t.st.doctors[ws.DoctorID]; !ok {
		return appointment.ErrDoctorNotFound
	}
	key := scheduleKey{ws.DoctorID, ws.Weekday}
	if existing, ok := t.st.schedules[key]; ok {
		ws.ID = existing.ID
		ws.CreatedAt = existing.CreatedAt
	}
	t.st.schedules[key] = *ws
	return nil
}

func (t *memTx) DeleteWeeklySchedule(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) error {
	if err := t.write("DeleteWeeklySchedule"); err != nil {
		return err
	}
	key := scheduleKey{doctorID, weekday}
	if _, ok := t.st.schedules[key]; !ok {
		return appointment.ErrScheduleNotFound
	}
	delete(t.st.schedules, key)
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	if err := t.write("InsertEvent"); err != nil {
		return err
	}
	t.st.nextEvent++
	ev.ID = t.st.nextEvent
	t.st.events = append(t.st.events, ev)
	return nil
}
