package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/mediqueue/internal/calendar"
	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/lock"
)

type Service struct {
	repo      Repository
	directory directory.Repository
	locker    lock.Locker
	cfg       config.Config
	logger    zerolog.Logger
}

// NewService wires the booking coordinator. Lifecycle events are written by
// repo together with each change.
func NewService(repo Repository, dir directory.Repository, locker lock.Locker, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: dir,
		locker:    locker,
		cfg:       cfg,
		logger:    logger.With().Str("component", "booking").Logger(),
	}
}

// SlotAvailability is one window of a doctor's day with its free capacity.
type SlotAvailability struct {
	Start     time.Time
	End       time.Time
	Capacity  int
	Booked    int
	Remaining int
}

// Windows loads the doctor and generates their windows for the clinic-local
// date containing date.
func (s *Service) Windows(ctx context.Context, doctorID uuid.UUID, date time.Time) (*directory.Doctor, []calendar.Window, error) {
	doctor, err := s.directory.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}

	day := calendar.Day(date, s.cfg.Location())
	windows := calendar.Windows(doctor.Availability, day, calendar.Options{
		SlotDuration: s.cfg.SlotDuration,
		Capacity:     doctor.CapacityOr(s.cfg.SlotCapacity),
	})
	return doctor, windows, nil
}

// AvailableSlots lists every window of the day, full ones included, with
// remaining = capacity - occupying appointments.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]SlotAvailability, error) {
	_, windows, err := s.Windows(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []SlotAvailability{}, nil
	}

	day := calendar.Day(date, s.cfg.Location()).Format(calendar.DateLayout)
	appts, err := s.repo.ListByDoctorDate(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list appointments for %s: %w", day, err)
	}

	booked := make(map[int64]int)
	for _, a := range appts {
		if a.Occupies() {
			booked[a.SlotStart.Unix()]++
		}
	}

	out := make([]SlotAvailability, 0, len(windows))
	for _, w := range windows {
		n := booked[w.Start.Unix()]
		remaining := w.Capacity - n
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, SlotAvailability{
			Start:     w.Start,
			End:       w.End,
			Capacity:  w.Capacity,
			Booked:    n,
			Remaining: remaining,
		})
	}
	return out, nil
}

// Book reserves one unit of the window starting at start on date. It fails
// with a *SlotError wrapping ErrInvalidSlot or ErrSlotFull. Transient store
// conflicts are retried and, once attempts run out, reported as ErrSlotFull.
// Waiting for the slot lock is the locker's job: a lock still held after its
// wait yields ErrSlotBusy and a caller that gives up gets its context error.
func (s *Service) Book(ctx context.Context, doctorID uuid.UUID, date, start time.Time, patientID uuid.UUID) (*Appointment, error) {
	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	_, windows, err := s.Windows(ctx, doctorID, date)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	w, ok := calendar.Find(windows, start)
	if !ok {
		return nil, &SlotError{Err: ErrInvalidSlot, DoctorID: doctorID, SlotStart: start}
	}

	res := Reservation{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      w.Start.Format(calendar.DateLayout),
		SlotStart: w.Start,
		SlotEnd:   w.End,
		Capacity:  w.Capacity,
	}

	var appt *Appointment
	for attempt := 1; attempt <= s.cfg.ReservationAttempts; attempt++ {
		err = s.locker.WithSlotLock(ctx, res.Key().String(), func(lockCtx context.Context) error {
			created, err := s.repo.Reserve(lockCtx, res)
			if err != nil {
				return err
			}
			appt = created
			return nil
		})
		if err == nil || !errors.Is(err, ErrReservationConflict) {
			break
		}

		s.logger.Debug().Err(err).Int("attempt", attempt).Str("slot", res.Key().String()).Msg("reservation contended")
		if attempt == s.cfg.ReservationAttempts {
			break
		}
		if waitErr := sleep(ctx, time.Duration(attempt)*s.cfg.ReservationBackoff); waitErr != nil {
			return nil, waitErr
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrSlotFull), errors.Is(err, ErrReservationConflict):
		return nil, &SlotError{Err: ErrSlotFull, DoctorID: doctorID, SlotStart: w.Start, SlotEnd: w.End}
	case errors.Is(err, lock.ErrNotAcquired):
		s.logger.Warn().Str("slot", res.Key().String()).Msg("slot lock wait expired")
		return nil, &SlotError{Err: ErrSlotBusy, DoctorID: doctorID, SlotStart: w.Start, SlotEnd: w.End}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Time("slot_start", appt.SlotStart).
		Int("token", appt.TokenNumber).
		Msg("appointment booked")

	return appt, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MarkCompleted moves a scheduled appointment to completed.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

// Cancel moves a scheduled appointment to cancelled, freeing its capacity
// unit. Surviving tokens in the window keep their numbers.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusScheduled, to)
	if err != nil {
		// Lost a race with another transition.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("status", string(to)).
		Msg("appointment status changed")
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments pages through appointments, 20 by default and at most 100.
func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, f.Status)
	}
	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}
