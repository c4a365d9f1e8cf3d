package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotFull            = errors.New("slot is full")
	ErrInvalidSlot         = errors.New("requested start is not a slot of this doctor on this date")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnknownStatus       = errors.New("unknown appointment status")
	// ErrSlotBusy means the window's lock stayed held for the whole lock
	// wait. Nothing was decided about capacity; the caller may resubmit.
	ErrSlotBusy = errors.New("slot is busy, try again")

	// ErrReservationConflict is a transient store conflict (serialization
	// failure, lost token race). Booking retries it and never surfaces it.
	ErrReservationConflict = errors.New("reservation conflict")
)

// Repository is the appointment store. Reserve is the only operation that
// must be atomic across records: counting the window's occupying
// appointments, assigning the next token and inserting happen as one step
// relative to other reservations for the same SlotKey.
type Repository interface {
	Reserve(ctx context.Context, res Reservation) (*Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus moves id from -> to, and returns ErrAppointmentNotFound when
	// no appointment with that id is in status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// ListByWindow returns every appointment of the window ordered by token.
	ListByWindow(ctx context.Context, doctorID uuid.UUID, slotStart time.Time) ([]Appointment, error)
	// ListByDoctorDate returns the doctor's appointments on date ordered by
	// slot start then token.
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error)
	// ListByPatientDate returns the patient's appointments on date ordered by
	// slot start.
	ListByPatientDate(ctx context.Context, patientID uuid.UUID, date string) ([]Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)
}
