package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SetWeeklySchedule creates or replaces the doctor's schedule for ws.Weekday.
// There is at most one row per (doctor, weekday).
func (s *Service) SetWeeklySchedule(ctx context.Context, ws WeeklySchedule) (*WeeklySchedule, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetDoctor(ctx, ws.DoctorID); err != nil {
			return err
		}
		now := s.now()
		if ws.ID == uuid.Nil {
			ws.ID = uuid.New()
		}
		ws.CreatedAt = now
		ws.UpdatedAt = now
		return tx.UpsertWeeklySchedule(ctx, &ws)
	})
	if err != nil {
		return nil, classify(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("doctor_id", ws.DoctorID.String()).
		Int("weekday", int(ws.Weekday)).
		Str("window", ws.StartTime.String()+"-"+ws.EndTime.String()).
		Int("slot_minutes", ws.SlotDurationMin).
		Msg("weekly schedule saved")

	return &ws, nil
}

// WeeklySchedules lists the doctor's schedule rows ordered by weekday.
func (s *Service) WeeklySchedules(ctx context.Context, doctorID uuid.UUID) ([]WeeklySchedule, error) {
	var list []WeeklySchedule
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetDoctor(ctx, doctorID); err != nil {
			return err
		}
		var err error
		list, err = tx.ListWeeklySchedules(ctx, doctorID)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if list == nil {
		list = []WeeklySchedule{}
	}
	return list, nil
}

func (s *Service) RemoveWeeklySchedule(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.DeleteWeeklySchedule(ctx, doctorID, weekday)
	})
	if err != nil {
		return classify(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("doctor_id", doctorID.String()).
		Int("weekday", int(weekday)).
		Msg("weekly schedule removed")
	return nil
}
