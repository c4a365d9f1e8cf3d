package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// Repository holds the doctor and patient records the engine references.
// Records are authored elsewhere; the create methods exist for seeding.
type Repository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, limit, offset int) ([]Doctor, error)
	CreateDoctor(ctx context.Context, d *Doctor) error

	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	CreatePatient(ctx context.Context, p *Patient) error
}
