package appointment

import (
	"fmt"
	"time"
)

const (
	MinSlotDuration = 15
	MaxSlotDuration = 60
	dateLayout      = "2006-01-02"
)

// Validate checks the invariants of a single weekly schedule row. A window that is
// not a multiple of the slot duration is accepted; the trailing remainder never
// becomes a slot.
func (ws *WeeklySchedule) Validate() error {
	if ws.Weekday < time.Sunday || ws.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday must be between 0 and 6", ErrInvalidSchedule)
	}
	if !ws.StartTime.Valid() || !ws.EndTime.Valid() {
		return fmt.Errorf("%w: times must be within the day", ErrInvalidSchedule)
	}
	if ws.StartTime >= ws.EndTime {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidSchedule)
	}
	if ws.SlotDurationMin < MinSlotDuration || ws.SlotDurationMin > MaxSlotDuration {
		return fmt.Errorf("%w: slot duration must be between %d and %d minutes", ErrInvalidSchedule, MinSlotDuration, MaxSlotDuration)
	}
	if int(ws.EndTime-ws.StartTime) < ws.SlotDurationMin {
		return fmt.Errorf("%w: window is shorter than one slot", ErrInvalidSchedule)
	}
	return nil
}

// Window is the schedule's working interval on the calendar date of day, read
// as given and anchored in loc.
func (ws *WeeklySchedule) Window(day time.Time, loc *time.Location) Interval {
	return Interval{Start: ws.StartTime.On(day, loc), End: ws.EndTime.On(day, loc)}
}

// GenerateSlots cuts the schedule window of day into consecutive slots of
// SlotDurationMin minutes and marks a slot unavailable when it overlaps any of
// busy. A partial slot crossing the end of the window is dropped. A nil
// schedule yields no slots.
func GenerateSlots(ws *WeeklySchedule, day time.Time, loc *time.Location, busy []Interval) []TimeSlot {
	if ws == nil || ws.SlotDurationMin <= 0 {
		return nil
	}

	window := ws.Window(day, loc)
	step := time.Duration(ws.SlotDurationMin) * time.Minute
	date := window.Start.Format(dateLayout)

	var slots []TimeSlot
	for start := window.Start; !start.Add(step).After(window.End); start = start.Add(step) {
		slot := Interval{Start: start, End: start.Add(step)}

		available := true
		for _, b := range busy {
			if slot.Overlaps(b) {
				available = false
				break
			}
		}

		slots = append(slots, TimeSlot{
			Date:      date,
			Start:     slot.Start,
			End:       slot.End,
			Available: available,
		})
	}

	return slots
}

// OnlyAvailable filters slots down to the bookable ones, keeping order.
func OnlyAvailable(slots []TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}

