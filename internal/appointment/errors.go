package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotError carries the window a booking failed against, for SlotFull,
// SlotBusy and InvalidSlot responses.
type SlotError struct {
	Err       error
	DoctorID  uuid.UUID
	SlotStart time.Time
	SlotEnd   time.Time
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("%v (slot %s)", e.Err, e.SlotStart.Format(time.RFC3339))
}

func (e *SlotError) Unwrap() error {
	return e.Err
}
