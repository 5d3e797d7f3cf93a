package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service

	// Appointment endpoints
	r.Get("/appointments", listAppointmentsHandler(svc))
	r.Get("/appointments/{id}", getAppointmentHandler(svc))
	r.Get("/appointments/{id}/history", appointmentHistoryHandler(svc))

	// Doctor agenda
	r.Get("/doctors/{id}/slots", listSlotsHandler(svc))
	r.Get("/doctors/{id}/schedules", listSchedulesHandler(svc))

	r.Group(func(r chi.Router) {
		r.Use(RequireActor)

		r.Post("/appointments", createAppointmentHandler(svc))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))
		r.Patch("/appointments/{id}/status", updateStatusHandler(svc))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(svc))

		r.Put("/doctors/{id}/schedules/{weekday}", putScheduleHandler(svc))
		r.Delete("/doctors/{id}/schedules/{weekday}", deleteScheduleHandler(svc))
	})

	return r
}
