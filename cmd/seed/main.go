package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("seed", cfg.Env, cfg.LogLevel)
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	seedCtx := logger.WithContext(context.Background())
	if err := db.Migrate(seedCtx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedDoctors(seedCtx, pool, 50)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedSchedules(seedCtx, pool, doctors); err != nil {
		logger.Fatal().Err(err).Msg("seed schedules")
	}
	if err := seedPatients(seedCtx, pool, 5000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Ctx(ctx).Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, first_name, last_name, license_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.FirstName(), gofakeit.LastName(), fmt.Sprintf("MP-%06d-%s", gofakeit.Number(0, 999999), id.String()[:4]))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Msg("doctors seeded")
	return ids, nil
}

// seedSchedules gives every doctor a morning or afternoon window on each weekday.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID) error {
	log.Ctx(ctx).Info().Int("doctors", len(doctors)).Msg("seeding weekly schedules")

	windows := [][2]appointment.TimeOfDay{
		{appointment.NewTimeOfDay(8, 0), appointment.NewTimeOfDay(12, 0)},
		{appointment.NewTimeOfDay(9, 0), appointment.NewTimeOfDay(13, 0)},
		{appointment.NewTimeOfDay(14, 0), appointment.NewTimeOfDay(18, 0)},
	}
	durations := []int{15, 20, 30, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctors {
		slot := durations[gofakeit.Number(0, len(durations)-1)]
		for wd := time.Monday; wd <= time.Friday; wd++ {
			w := windows[gofakeit.Number(0, len(windows)-1)]
			ws := appointment.WeeklySchedule{
				DoctorID:        doctorID,
				Weekday:         wd,
				StartTime:       w[0],
				EndTime:         w[1],
				SlotDurationMin: slot,
			}
			if err := ws.Validate(); err != nil {
				return err
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO doctor_schedules (id, doctor_id, weekday, start_time, end_time, slot_duration_min, created_at, updated_at)
				VALUES ($1, $2, $3, $4::time, $5::time, $6, now(), now())
				ON CONFLICT (doctor_id, weekday) DO NOTHING
			`, uuid.New(), doctorID, int16(wd), ws.StartTime.String(), ws.EndTime.String(), int16(slot))
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Ctx(ctx).Info().Msg("weekly schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Ctx(ctx).Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, first_name, last_name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Ctx(ctx).Info().Int("seeded", end).Int("total", count).Msg("patients batch committed")
	}

	log.Ctx(ctx).Info().Msg("patients seeded")
	return nil
}
