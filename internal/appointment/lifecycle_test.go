package appointment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusScheduled:   {StatusConfirmed, StatusCancelled, StatusRescheduled},
		StatusConfirmed:   {StatusAttended, StatusCancelled, StatusRescheduled},
		StatusRescheduled: {StatusScheduled, StatusConfirmed, StatusCancelled, StatusRescheduled},
	}
	all := []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusAttended, StatusCancelled, StatusRescheduled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, IsTerminal(StatusAttended))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusScheduled))
	assert.False(t, IsTerminal(StatusConfirmed))
	assert.False(t, IsTerminal(StatusRescheduled))
}

func TestCheckTransitionError(t *testing.T) {
	err := checkTransition(StatusCancelled, StatusConfirmed)

	var te *TransitionError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, StatusCancelled, te.From)
	assert.Equal(t, StatusConfirmed, te.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, checkTransition(StatusScheduled, StatusConfirmed))
}

func TestHistoryEventFor(t *testing.T) {
	assert.Equal(t, HistoryCancel, historyEventFor(StatusCancelled))
	assert.Equal(t, HistoryStatusChange, historyEventFor(StatusConfirmed))
	assert.Equal(t, HistoryStatusChange, historyEventFor(StatusAttended))
}
