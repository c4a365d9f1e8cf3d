package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	// Date is the clinic-local calendar date, YYYY-MM-DD.
	Date string
	// SlotStart and SlotEnd are copied from the window at booking time.
	SlotStart   time.Time
	SlotEnd     time.Time
	TokenNumber int
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Occupies reports whether the appointment holds a capacity unit in its window.
func (a Appointment) Occupies() bool {
	return a.Status != StatusCancelled
}

// SlotKey identifies one reservable window: a doctor and a slot start instant.
type SlotKey struct {
	DoctorID uuid.UUID
	Start    int64 // unix seconds
}

func KeyOf(doctorID uuid.UUID, slotStart time.Time) SlotKey {
	return SlotKey{DoctorID: doctorID, Start: slotStart.Unix()}
}

func (k SlotKey) String() string {
	return fmt.Sprintf("slot:%s:%d", k.DoctorID, k.Start)
}

// Reservation is one request for a capacity unit in a window.
type Reservation struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      string
	SlotStart time.Time
	SlotEnd   time.Time
	Capacity  int
}

func (r Reservation) Key() SlotKey {
	return KeyOf(r.DoctorID, r.SlotStart)
}

// Filter narrows ListAppointments. Zero fields do not filter.
type Filter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	Status    Status
	Limit     int
	Offset    int
}
