package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/calendar"
)

func availableSlotsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		raw := r.URL.Query().Get("date")
		date, err := calendar.ParseDate(raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, KindValidation, "date must be YYYY-MM-DD", nil)
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleError(w, err)
			return
		}

		resp := SlotsResponse{
			DoctorID: doctorID,
			Date:     date.Format(calendar.DateLayout),
			Slots:    make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				Start:     s.Start,
				End:       s.End,
				Capacity:  s.Capacity,
				Remaining: s.Remaining,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decode(w, r, &req) {
			return
		}

		// validated by tags
		doctorID := uuid.MustParse(req.DoctorID)
		patientID := uuid.MustParse(req.PatientID)
		date, err := calendar.ParseDate(req.Date, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, KindValidation, "date must be YYYY-MM-DD", nil)
			return
		}
		start, err := calendar.ParseClockOn(date, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, KindValidation, "start must be HH:MM", nil)
			return
		}

		appt, err := svc.Book(r.Context(), doctorID, date, start, patientID)
		if err != nil {
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidQuery(w, r, "doctor_id")
		if !ok {
			return
		}
		patientID, ok := uuidQuery(w, r, "patient_id")
		if !ok {
			return
		}

		q := r.URL.Query()
		date := q.Get("date")
		if date != "" {
			if _, err := time.Parse(calendar.DateLayout, date); err != nil {
				writeError(w, http.StatusBadRequest, KindValidation, "date must be YYYY-MM-DD", nil)
				return
			}
		}

		limit, offset := paging(r)
		appts, err := svc.ListAppointments(r.Context(), appointment.Filter{
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      date,
			Status:    appointment.Status(q.Get("status")),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

// transitionHandler serves the complete and cancel actions.
func transitionHandler(apply func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := apply(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}
