package consultation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrConsultationNotFound  = errors.New("consultation not found")
	ErrDuplicateConsultation = errors.New("appointment already has a consultation")
)

// Repository stores consultations with at most one per appointment. Create
// reports ErrDuplicateConsultation when the appointment already has one.
type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error)
	List(ctx context.Context, limit, offset int) ([]Consultation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
