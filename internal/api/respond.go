package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/consultation"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/queue"
)

// Error kinds reported in the error field of every failed response.
const (
	KindInvalidSlot           = "InvalidSlot"
	KindSlotFull              = "SlotFull"
	KindSlotBusy              = "SlotBusy"
	KindNotFound              = "NotFound"
	KindInvalidTransition     = "InvalidTransition"
	KindNotCompleted          = "NotCompleted"
	KindDuplicateConsultation = "DuplicateConsultation"
	KindValidation            = "ValidationError"
	KindInternal              = "InternalError"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string, details map[string]string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message, Details: details})
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "could not parse JSON body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": err.Error()}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[strings.ToLower(fe.Field())] = rule
	}
	return details
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// uuidQuery parses an optional UUID query parameter; absent yields uuid.Nil.
func uuidQuery(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// nowQuery reads the optional RFC3339 now parameter, falling back to clock.
func nowQuery(w http.ResponseWriter, r *http.Request, clock func() time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get("now")
	if raw == "" {
		return clock(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "now must be an RFC3339 timestamp", nil)
		return time.Time{}, false
	}
	return t, true
}

func paging(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}

// handleError maps domain errors to their HTTP status and error kind.
func handleError(w http.ResponseWriter, err error) {
	var slotErr *appointment.SlotError
	if errors.As(err, &slotErr) {
		details := map[string]string{"slot_start": slotErr.SlotStart.Format(time.RFC3339)}
		if !slotErr.SlotEnd.IsZero() {
			details["slot_end"] = slotErr.SlotEnd.Format(time.RFC3339)
		}
		if slotErr.DoctorID != uuid.Nil {
			details["doctor_id"] = slotErr.DoctorID.String()
		}
		switch {
		case errors.Is(err, appointment.ErrSlotFull):
			writeError(w, http.StatusConflict, KindSlotFull, "slot is full, pick another slot", details)
			return
		case errors.Is(err, appointment.ErrSlotBusy):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, KindSlotBusy, "slot is busy, retry the booking", details)
			return
		}
		writeError(w, http.StatusBadRequest, KindInvalidSlot, "requested start is not an available slot", details)
		return
	}

	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, consultation.ErrConsultationNotFound),
		errors.Is(err, directory.ErrDoctorNotFound),
		errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, KindNotFound, err.Error(), nil)
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, KindInvalidTransition, err.Error(), nil)
	case errors.Is(err, consultation.ErrNotCompleted):
		writeError(w, http.StatusConflict, KindNotCompleted, err.Error(), nil)
	case errors.Is(err, consultation.ErrDuplicateConsultation):
		writeError(w, http.StatusConflict, KindDuplicateConsultation, err.Error(), nil)
	case errors.Is(err, appointment.ErrUnknownStatus),
		errors.Is(err, queue.ErrDoctorRequired):
		writeError(w, http.StatusBadRequest, KindValidation, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, KindInternal, fmt.Sprintf("internal error: %v", err), nil)
	}
}
