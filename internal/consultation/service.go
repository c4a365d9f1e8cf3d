package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/events"
)

// addedEvent is written by the repositories together with the consultation.
func addedEvent(c *Consultation) (events.Event, error) {
	return events.New(events.ConsultationAdded, c.AppointmentID, map[string]any{
		"consultation_id": c.ID.String(),
	})
}

var ErrNotCompleted = errors.New("appointment is not completed")

type Service struct {
	repo   Repository
	appts  appointment.Repository
	logger zerolog.Logger
}

func NewService(repo Repository, appts appointment.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		appts:  appts,
		logger: logger.With().Str("component", "consultation").Logger(),
	}
}

// Add records the consultation of a completed appointment. The uniqueness of
// appointment_id in the store decides concurrent duplicates.
func (s *Service) Add(ctx context.Context, appointmentID uuid.UUID, symptoms, prescription string) (*Consultation, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != appointment.StatusCompleted {
		return nil, ErrNotCompleted
	}

	c := &Consultation{
		AppointmentID: appointmentID,
		Symptoms:      symptoms,
		Prescription:  prescription,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateConsultation) {
			return nil, err
		}
		return nil, fmt.Errorf("create consultation: %w", err)
	}

	s.logger.Info().
		Str("consultation_id", c.ID.String()).
		Str("appointment_id", appointmentID.String()).
		Msg("consultation added")

	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Consultation, error) {
	out, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return out, nil
}

// Delete removes a consultation. The appointment stays completed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ForAppointment returns the appointment's consultation, if any.
func (s *Service) ForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}
