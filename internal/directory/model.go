package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/calendar"
)

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	Availability   calendar.Availability
	Contact        string
	// SlotCapacity overrides the clinic-wide capacity when positive.
	SlotCapacity int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CapacityOr returns the doctor's own slot capacity, or def when unset.
func (d Doctor) CapacityOr(def int) int {
	if d.SlotCapacity > 0 {
		return d.SlotCapacity
	}
	return def
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Age       int
	Gender    string
	Contact   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
