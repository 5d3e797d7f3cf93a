package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		day, err := appointment.ParseDate(q.Get("date"), svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		var exclude *uuid.UUID
		if v := q.Get("exclude_appointment_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "exclude_appointment_id must be a valid UUID")
				return
			}
			exclude = &id
		}

		onlyAvailable := false
		if v := q.Get("only_available"); v != "" {
			onlyAvailable, err = strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_only_available", "only_available must be a boolean")
				return
			}
		}

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, day, exclude)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if onlyAvailable {
			slots = appointment.OnlyAvailable(slots)
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{
				Date:      s.Date,
				StartAt:   s.Start,
				EndAt:     s.End,
				Available: s.Available,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSchedulesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}

		list, err := svc.WeeklySchedules(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]ScheduleResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toScheduleResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func putScheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}
		weekday, ok := weekdayParam(w, r)
		if !ok {
			return
		}

		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		start, err := appointment.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}
		end, err := appointment.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}

		ws, err := svc.SetWeeklySchedule(r.Context(), appointment.WeeklySchedule{
			DoctorID:        doctorID,
			Weekday:         weekday,
			StartTime:       start,
			EndTime:         end,
			SlotDurationMin: req.SlotDurationMin,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponse(ws))
	}
}

func deleteScheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := doctorIDParam(w, r)
		if !ok {
			return
		}
		weekday, ok := weekdayParam(w, r)
		if !ok {
			return
		}

		if err := svc.RemoveWeeklySchedule(r.Context(), doctorID, weekday); err != nil {
			handleServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func doctorIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// weekdayParam parses the {weekday} segment, 0 = Sunday.
func weekdayParam(w http.ResponseWriter, r *http.Request) (time.Weekday, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil || n < 0 || n > 6 {
		writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be between 0 (Sunday) and 6")
		return 0, false
	}
	return time.Weekday(n), true
}
