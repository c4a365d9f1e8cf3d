package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/calendar"
	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/directory"
)

var ErrDoctorRequired = errors.New("doctor_id is required when more than one doctor is registered")

const (
	StatusWithDoctor = "with_doctor"
	StatusWaiting    = "waiting"
	StatusUpcoming   = "upcoming"
)

// Service answers the live queue queries. It only reads, and never takes
// the slot locks bookings use.
type Service struct {
	appts     appointment.Repository
	directory directory.Repository
	cfg       config.Config
}

func NewService(appts appointment.Repository, dir directory.Repository, cfg config.Config) *Service {
	return &Service{
		appts:     appts,
		directory: dir,
		cfg:       cfg,
	}
}

type Window struct {
	Start time.Time
	End   time.Time
}

type Live struct {
	CurrentTime  time.Time
	DoctorID     uuid.UUID
	Window       *Window
	Appointments []appointment.Appointment
	Message      string
}

func (l Live) Count() int {
	return len(l.Appointments)
}

// LiveQueue returns the scheduled appointments of the doctor's window that
// contains now, by token. Between windows or off hours Window is nil and
// Message says why. A nil doctorID resolves to the only registered doctor.
func (s *Service) LiveQueue(ctx context.Context, doctorID uuid.UUID, now time.Time) (*Live, error) {
	if doctorID == uuid.Nil {
		id, err := s.onlyDoctor(ctx)
		if err != nil {
			return nil, err
		}
		doctorID = id
	}

	doctor, err := s.directory.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	loc := s.cfg.Location()
	now = now.In(loc)
	live := &Live{
		CurrentTime:  now,
		DoctorID:     doctorID,
		Appointments: []appointment.Appointment{},
	}

	windows := calendar.Windows(doctor.Availability, calendar.Day(now, loc), calendar.Options{
		SlotDuration: s.cfg.SlotDuration,
		Capacity:     doctor.CapacityOr(s.cfg.SlotCapacity),
	})
	w, ok := calendar.Containing(windows, now)
	if !ok {
		live.Message = "No active time slot at the current time"
		return live, nil
	}
	live.Window = &Window{Start: w.Start, End: w.End}

	appts, err := s.appts.ListByWindow(ctx, doctorID, w.Start)
	if err != nil {
		return nil, fmt.Errorf("list window appointments: %w", err)
	}
	for _, a := range appts {
		if a.Status == appointment.StatusScheduled {
			live.Appointments = append(live.Appointments, a)
		}
	}
	if len(live.Appointments) == 0 {
		live.Message = "No appointments in the current time slot"
	}
	return live, nil
}

func (s *Service) onlyDoctor(ctx context.Context) (uuid.UUID, error) {
	doctors, err := s.directory.ListDoctors(ctx, 2, 0)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list doctors: %w", err)
	}
	switch len(doctors) {
	case 0:
		return uuid.Nil, directory.ErrDoctorNotFound
	case 1:
		return doctors[0].ID, nil
	default:
		return uuid.Nil, ErrDoctorRequired
	}
}

// WaitEstimate is a whole number of minutes, or pending while the
// appointment's window has not started.
type WaitEstimate struct {
	Minutes int
	Pending bool
}

func (w WaitEstimate) MarshalJSON() ([]byte, error) {
	if w.Pending {
		return []byte(`"pending"`), nil
	}
	return []byte(strconv.Itoa(w.Minutes)), nil
}

func (w *WaitEstimate) UnmarshalJSON(data []byte) error {
	if string(data) == `"pending"` {
		*w = WaitEstimate{Pending: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("wait estimate: %w", err)
	}
	*w = WaitEstimate{Minutes: n}
	return nil
}

type PatientStatus struct {
	PatientID     uuid.UUID
	InQueue       bool
	QueueStatus   string
	Position      int
	AheadCount    int
	EstimatedWait WaitEstimate
	Appointment   *appointment.Appointment
	Doctor        *directory.Doctor
	ExpectedStart time.Time
	LastUpdated   time.Time
	Message       string
}

// PatientStatus finds the patient's scheduled appointment whose window
// contains now, or failing that their next one later on now's date, and
// reports how many scheduled appointments with a smaller token are ahead.
// The result depends only on now and stored state.
func (s *Service) PatientStatus(ctx context.Context, patientID uuid.UUID, now time.Time) (*PatientStatus, error) {
	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	loc := s.cfg.Location()
	now = now.In(loc)
	status := &PatientStatus{PatientID: patientID, LastUpdated: now}

	day := calendar.Day(now, loc).Format(calendar.DateLayout)
	appts, err := s.appts.ListByPatientDate(ctx, patientID, day)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}

	appt, current := pick(appts, now)
	if appt == nil {
		status.Message = "No active or upcoming appointment today"
		return status, nil
	}

	window, err := s.appts.ListByWindow(ctx, appt.DoctorID, appt.SlotStart)
	if err != nil {
		return nil, fmt.Errorf("list window appointments: %w", err)
	}
	position := 0
	for _, other := range window {
		if other.ID != appt.ID && other.Status == appointment.StatusScheduled && other.TokenNumber < appt.TokenNumber {
			position++
		}
	}

	doctor, err := s.directory.GetDoctor(ctx, appt.DoctorID)
	if err != nil && !errors.Is(err, directory.ErrDoctorNotFound) {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	status.InQueue = true
	status.Appointment = appt
	status.Doctor = doctor
	status.Position = position
	status.AheadCount = position
	status.ExpectedStart = appt.SlotStart.Add(time.Duration(position) * s.cfg.AvgConsultation)

	switch {
	case !current:
		status.QueueStatus = StatusUpcoming
		status.EstimatedWait = WaitEstimate{Pending: true}
	case position == 0:
		status.QueueStatus = StatusWithDoctor
	default:
		status.QueueStatus = StatusWaiting
		status.EstimatedWait = WaitEstimate{Minutes: position * int(s.cfg.AvgConsultation/time.Minute)}
	}
	return status, nil
}

// pick prefers a scheduled appointment in progress at now, then the earliest
// scheduled one starting after now. appts is ordered by slot start.
func pick(appts []appointment.Appointment, now time.Time) (*appointment.Appointment, bool) {
	var next *appointment.Appointment
	for i := range appts {
		a := &appts[i]
		if a.Status != appointment.StatusScheduled {
			continue
		}
		if !now.Before(a.SlotStart) && now.Before(a.SlotEnd) {
			return a, true
		}
		if a.SlotStart.After(now) && next == nil {
			next = a
		}
	}
	return next, false
}
