package api

import (
	"net/http"
	"time"

	"github.com/hackgods/mediqueue/internal/queue"
)

func liveQueueHandler(svc *queue.Service, clock func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidQuery(w, r, "doctor_id")
		if !ok {
			return
		}
		now, ok := nowQuery(w, r, clock)
		if !ok {
			return
		}

		live, err := svc.LiveQueue(r.Context(), doctorID, now)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLiveQueueResponse(live))
	}
}

func patientStatusHandler(svc *queue.Service, clock func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		now, ok := nowQuery(w, r, clock)
		if !ok {
			return
		}

		st, err := svc.PatientStatus(r.Context(), patientID, now)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientStatusResponse(st))
	}
}
