package appointment

import (
	"errors"
	"fmt"

	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

var (
	ErrInvalidInterval     = errors.New("invalid interval: start must be before end")
	ErrSlotUnavailable     = errors.New("doctor already has an appointment in that interval")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, please retry")
	ErrInternal            = errors.New("internal scheduling error")

	ErrInvalidSchedule = errors.New("invalid weekly schedule")
	ErrInvalidChannel  = errors.New("invalid appointment channel")

	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrScheduleNotFound    = fmt.Errorf("schedule %w", ErrNotFound)
)

// TransitionError names the current and requested status of a rejected change.
type TransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// known error kinds pass through untouched; everything else becomes ErrInternal.
var kinds = []error{
	ErrInvalidInterval,
	ErrSlotUnavailable,
	ErrNotFound,
	ErrInvalidTransition,
	ErrConcurrencyConflict,
	ErrInternal,
	ErrInvalidSchedule,
	ErrInvalidChannel,
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
