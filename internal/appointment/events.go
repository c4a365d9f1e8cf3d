package appointment

import (
	"fmt"

	"github.com/hackgods/mediqueue/internal/events"
)

// lifecycleEvent describes a's current state. Repositories record it together
// with the write that produced that state.
func lifecycleEvent(a *Appointment) (events.Event, error) {
	switch a.Status {
	case StatusScheduled:
		return events.New(events.AppointmentBooked, a.ID, map[string]any{
			"doctor_id":    a.DoctorID.String(),
			"patient_id":   a.PatientID.String(),
			"date":         a.Date,
			"slot_start":   a.SlotStart,
			"slot_end":     a.SlotEnd,
			"token_number": a.TokenNumber,
		})
	case StatusCompleted:
		return events.New(events.AppointmentCompleted, a.ID, map[string]any{
			"doctor_id":    a.DoctorID.String(),
			"token_number": a.TokenNumber,
		})
	case StatusCancelled:
		return events.New(events.AppointmentCancelled, a.ID, map[string]any{
			"doctor_id":    a.DoctorID.String(),
			"slot_start":   a.SlotStart,
			"token_number": a.TokenNumber,
		})
	default:
		return events.Event{}, fmt.Errorf("%w: %q", ErrUnknownStatus, a.Status)
	}
}
