package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment/appointmenttest"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
)

type testServer struct {
	handler http.Handler
	store   *appointmenttest.Store
	doctor  appointment.Doctor
	patient appointment.Patient
	userID  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := appointmenttest.NewStore()
	svc := appointment.NewService(store, nil, config.Config{}).WithClock(func() time.Time { return testNow })
	return &testServer{
		handler: NewRouter(RouterConfig{Service: svc, Logger: zerolog.Nop(), Env: "test"}),
		store:   store,
		doctor:  store.AddDoctor("Ana", "Ruiz"),
		patient: store.AddPatient("Luis", "Gomez"),
		userID:  uuid.New(),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-User-ID", s.userID.String())
		req.Header.Set("X-User-Role", "admin")
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createAt(t *testing.T, start time.Time) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: s.patient.ID.String(),
		DoctorID:  s.doctor.ID.String(),
		StartAt:   start,
		EndAt:     start.Add(30 * time.Minute),
	}, true)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// 2025-03-10 is a Monday.
var (
	monday9 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	testNow = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
)

func TestCreateAppointmentEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.createAt(t, monday9)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "scheduled", appt.Status)
	assert.Equal(t, "presencial", appt.Channel)
	assert.Equal(t, s.userID, appt.CreatedBy)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.createAt(t, monday9.Add(15*time.Minute))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)

	rec = s.createAt(t, monday9.Add(30*time.Minute))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateAppointmentValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: s.patient.ID.String(),
		DoctorID:  s.doctor.ID.String(),
		StartAt:   monday9,
		EndAt:     monday9.Add(-time.Minute),
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_interval", decode[ErrorResponse](t, rec).Error)

	rec = s.createAt(t, testNow.Add(-24*time.Hour))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_interval", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: "nope",
		DoctorID:  s.doctor.ID.String(),
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_patient_id", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: s.patient.ID.String(),
		DoctorID:  uuid.NewString(),
		StartAt:   monday9,
		EndAt:     monday9.Add(30 * time.Minute),
	}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: s.patient.ID.String(),
		DoctorID:  s.doctor.ID.String(),
		StartAt:   monday9,
		EndAt:     monday9.Add(30 * time.Minute),
		Channel:   "fax",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_channel", decode[ErrorResponse](t, rec).Error)
}

func TestMutationsRequireActor(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: s.patient.ID.String(),
		DoctorID:  s.doctor.ID.String(),
		StartAt:   monday9,
		EndAt:     monday9.Add(30 * time.Minute),
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, s.store.Appointments())

	req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "janitor")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	created := decode[AppointmentResponse](t, s.createAt(t, monday9))
	base := "/appointments/" + created.ID.String()

	rec := s.do(t, http.MethodPatch, base+"/status", UpdateStatusRequest{Status: "attended"}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPatch, base+"/status", UpdateStatusRequest{Status: "confirmed"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/reschedule", RescheduleAppointmentRequest{
		StartAt: monday9.Add(2 * time.Hour),
		EndAt:   monday9.Add(2*time.Hour + 30*time.Minute),
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "rescheduled", moved.Status)
	assert.True(t, moved.StartAt.Equal(monday9.Add(2*time.Hour)))

	rec = s.do(t, http.MethodPost, base+"/cancel", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, base+"/history", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]HistoryEntryResponse](t, rec)
	require.Len(t, history, 4)
	assert.Equal(t, "create", history[0].EventType)
	assert.Equal(t, "status_change", history[1].EventType)
	assert.Equal(t, "reschedule", history[2].EventType)
	assert.Equal(t, "cancel", history[3].EventType)
	assert.Equal(t, s.userID, history[3].ActorUserID)
}

func TestDeleteAppointmentEndpointIsSoft(t *testing.T) {
	s := newTestServer(t)
	created := decode[AppointmentResponse](t, s.createAt(t, monday9))
	path := "/appointments/" + created.ID.String()

	rec := s.do(t, http.MethodDelete, path, NotesRequest{Notes: ptr("duplicate booking")}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, path, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[AppointmentResponse](t, rec).Status)

	history := s.store.History(created.ID)
	require.Len(t, history, 2)
	assert.Equal(t, appointment.HistoryDelete, history[1].EventType)
	assert.Equal(t, "duplicate booking", *history[1].Notes)
}

func TestGetAppointmentErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/appointments/not-a-uuid", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Error)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createAt(t, monday9)
	s.createAt(t, monday9.Add(time.Hour))

	rec := s.do(t, http.MethodGet, "/appointments?doctor_id="+s.doctor.ID.String()+"&limit=1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]AppointmentResponse](t, rec)
	require.Len(t, list, 1)
	assert.True(t, list[0].StartAt.Equal(monday9.Add(time.Hour)))

	rec = s.do(t, http.MethodGet, "/appointments?status=lost", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments?from=yesterday", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulesAndSlotsEndpoints(t *testing.T) {
	s := newTestServer(t)
	doctor := "/doctors/" + s.doctor.ID.String()

	rec := s.do(t, http.MethodPut, doctor+"/schedules/1", ScheduleRequest{
		StartTime: "08:00", EndTime: "12:00", SlotDurationMin: 30,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ws := decode[ScheduleResponse](t, rec)
	assert.Equal(t, 1, ws.Weekday)
	assert.Equal(t, "08:00", ws.StartTime)

	rec = s.do(t, http.MethodPut, doctor+"/schedules/1", ScheduleRequest{
		StartTime: "12:00", EndTime: "08:00", SlotDurationMin: 30,
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_schedule", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPut, doctor+"/schedules/9", ScheduleRequest{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.createAt(t, monday9)

	rec = s.do(t, http.MethodGet, doctor+"/slots?date=2025-03-10", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]SlotResponse](t, rec)
	require.Len(t, slots, 8)
	assert.False(t, slots[2].Available)

	rec = s.do(t, http.MethodGet, doctor+"/slots?date=2025-03-10&only_available=true", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SlotResponse](t, rec), 7)

	rec = s.do(t, http.MethodGet, doctor+"/slots?date=2025-03-11", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = s.do(t, http.MethodGet, doctor+"/slots?date=10/03/2025", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, doctor+"/schedules", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScheduleResponse](t, rec), 1)

	rec = s.do(t, http.MethodDelete, doctor+"/schedules/1", nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, doctor+"/schedules/1", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[LivenessResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/health/ready", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "error", ready.Status)
	assert.Equal(t, "not_configured", ready.Dependencies["postgres"])
}

func ptr[T any](v T) *T { return &v }
