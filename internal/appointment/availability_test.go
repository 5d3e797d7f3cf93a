package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondaySchedule(start, end TimeOfDay, slot int) *WeeklySchedule {
	return &WeeklySchedule{
		ID:              uuid.New(),
		DoctorID:        uuid.New(),
		Weekday:         time.Monday,
		StartTime:       start,
		EndTime:         end,
		SlotDurationMin: slot,
	}
}

func TestGenerateSlotsFreeMorning(t *testing.T) {
	ws := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(12, 0), 30)
	day := at(0, 0)

	slots := GenerateSlots(ws, day, time.UTC, nil)

	require.Len(t, slots, 8)
	for i, s := range slots {
		assert.True(t, s.Available)
		assert.Equal(t, "2025-03-10", s.Date)
		assert.Equal(t, at(8, 0).Add(time.Duration(i)*30*time.Minute), s.Start)
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
	}
	assert.Equal(t, at(12, 0), slots[7].End)
}

func TestGenerateSlotsMarksBooked(t *testing.T) {
	ws := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(12, 0), 30)
	busy := []Interval{{Start: at(9, 0), End: at(9, 30)}}

	slots := GenerateSlots(ws, at(0, 0), time.UTC, busy)

	require.Len(t, slots, 8)
	assert.Len(t, OnlyAvailable(slots), 7)
	for _, s := range slots {
		assert.Equal(t, !s.Start.Equal(at(9, 0)), s.Available, "slot %s", s.Start)
	}
}

func TestGenerateSlotsPartialOverlap(t *testing.T) {
	ws := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(10, 0), 30)
	busy := []Interval{{Start: at(8, 45), End: at(9, 15)}}

	slots := GenerateSlots(ws, at(0, 0), time.UTC, busy)

	require.Len(t, slots, 4)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.False(t, slots[2].Available)
	assert.True(t, slots[3].Available)
}

func TestGenerateSlotsDropsTrailingRemainder(t *testing.T) {
	ws := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(9, 40), 30)

	slots := GenerateSlots(ws, at(0, 0), time.UTC, nil)

	require.Len(t, slots, 3)
	assert.Equal(t, at(9, 30), slots[2].End)
}

func TestGenerateSlotsNilSchedule(t *testing.T) {
	assert.Empty(t, GenerateSlots(nil, at(0, 0), time.UTC, nil))
}

func TestGenerateSlotsInClinicZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ws := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(9, 0), 30)
	day, err := ParseDate("2025-03-10", loc)
	require.NoError(t, err)

	slots := GenerateSlots(ws, day, loc, nil)

	require.Len(t, slots, 2)
	assert.Equal(t, at(13, 0), slots[0].Start.UTC())
	assert.Equal(t, "2025-03-10", slots[0].Date)
}

func TestGenerateSlotsKeepsCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ws := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(9, 0), 30)

	// UTC midnight is still Sunday evening in loc, but the date is Monday
	slots := GenerateSlots(ws, at(0, 0), loc, nil)

	require.Len(t, slots, 2)
	assert.Equal(t, at(13, 0), slots[0].Start.UTC())
	assert.Equal(t, "2025-03-10", slots[0].Date)
	assert.Equal(t, Interval{Start: at(13, 0), End: at(14, 0)}, Interval{
		Start: ws.Window(at(0, 0), loc).Start.UTC(),
		End:   ws.Window(at(0, 0), loc).End.UTC(),
	})
}

func TestWeeklyScheduleValidate(t *testing.T) {
	valid := mondaySchedule(NewTimeOfDay(8, 0), NewTimeOfDay(12, 0), 30)
	require.NoError(t, valid.Validate())

	cases := map[string]func(ws *WeeklySchedule){
		"weekday out of range": func(ws *WeeklySchedule) { ws.Weekday = 7 },
		"end before start":     func(ws *WeeklySchedule) { ws.EndTime = NewTimeOfDay(7, 0) },
		"equal bounds":         func(ws *WeeklySchedule) { ws.EndTime = ws.StartTime },
		"slot too short":       func(ws *WeeklySchedule) { ws.SlotDurationMin = 10 },
		"slot too long":        func(ws *WeeklySchedule) { ws.SlotDurationMin = 90 },
		"window below a slot":  func(ws *WeeklySchedule) { ws.EndTime = NewTimeOfDay(8, 20) },
		"time past midnight":   func(ws *WeeklySchedule) { ws.EndTime = NewTimeOfDay(24, 30) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ws := *valid
			mutate(&ws)
			assert.ErrorIs(t, ws.Validate(), ErrInvalidSchedule)
		})
	}
}
