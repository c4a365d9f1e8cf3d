package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/consultation"
)

func createConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateConsultationRequest
		if !decode(w, r, &req) {
			return
		}

		c, err := svc.Add(r.Context(), uuid.MustParse(req.AppointmentID), req.Symptoms, req.Prescription)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toConsultationResponse(c))
	}
}

func getConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		c, err := svc.Get(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toConsultationResponse(c))
	}
}

func listConsultationsHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := uuidQuery(w, r, "appointment_id")
		if !ok {
			return
		}

		resp := []ConsultationResponse{}
		if appointmentID != uuid.Nil {
			c, err := svc.ForAppointment(r.Context(), appointmentID)
			switch {
			case errors.Is(err, consultation.ErrConsultationNotFound):
			case err != nil:
				handleError(w, err)
				return
			default:
				resp = append(resp, toConsultationResponse(c))
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		limit, offset := paging(r)
		list, err := svc.List(r.Context(), limit, offset)
		if err != nil {
			handleError(w, err)
			return
		}
		for i := range list {
			resp = append(resp, toConsultationResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
