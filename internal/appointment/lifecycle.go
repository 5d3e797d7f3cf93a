package appointment

// transitions lists every legal status change. Anything absent is rejected.
// rescheduled is still active: it can return to scheduled or confirmed, or be
// rescheduled again.
var transitions = map[AppointmentStatus]map[AppointmentStatus]bool{
	StatusScheduled: {
		StatusConfirmed:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusConfirmed: {
		StatusAttended:    true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusRescheduled: {
		StatusScheduled:   true,
		StatusConfirmed:   true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusAttended:  {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to AppointmentStatus) bool {
	return transitions[from][to]
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s AppointmentStatus) bool {
	return len(transitions[s]) == 0
}

func checkTransition(from, to AppointmentStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// historyEventFor picks the audit event type for a plain status change.
func historyEventFor(to AppointmentStatus) HistoryEventType {
	if to == StatusCancelled {
		return HistoryCancel
	}
	return HistoryStatusChange
}

func statusValue(s AppointmentStatus) *string {
	v := "status=" + string(s)
	return &v
}

func intervalValue(iv Interval) *string {
	v := iv.String()
	return &v
}
