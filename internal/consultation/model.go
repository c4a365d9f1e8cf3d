package consultation

import (
	"time"

	"github.com/google/uuid"
)

type Consultation struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Symptoms      string
	Prescription  string
	CreatedAt     time.Time
}
