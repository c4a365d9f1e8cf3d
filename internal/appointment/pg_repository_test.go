package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mediqueue/internal/calendar"
	"github.com/hackgods/mediqueue/internal/db/dbtest"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/events"
	"github.com/hackgods/mediqueue/internal/lock"
)

func TestConflict(t *testing.T) {
	for _, code := range []string{"23505", "40001", "40P01"} {
		err := conflict(&pgconn.PgError{Code: code, Message: "boom"})
		assert.ErrorIs(t, err, ErrReservationConflict, code)
	}

	fk := &pgconn.PgError{Code: "23503", Message: "foreign key"}
	err := conflict(fk)
	assert.NotErrorIs(t, err, ErrReservationConflict)
	assert.Same(t, fk, err)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, conflict(plain))
}

type pgFixture struct {
	pool   *pgxpool.Pool
	repo   *PgRepository
	dir    *directory.PgRepository
	doctor *directory.Doctor
}

func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()
	pool := dbtest.Pool(t)
	dir := directory.NewPgRepository(pool)

	doctor := &directory.Doctor{Name: "Dr. Iyer", Availability: calendar.MustParseAvailability("Mon-Sat 09:00-12:00")}
	require.NoError(t, dir.CreateDoctor(context.Background(), doctor))

	return &pgFixture{pool: pool, repo: NewPgRepository(pool), dir: dir, doctor: doctor}
}

func (f *pgFixture) patient(t *testing.T) uuid.UUID {
	t.Helper()
	p := &directory.Patient{Name: "patient"}
	require.NoError(t, f.dir.CreatePatient(context.Background(), p))
	return p.ID
}

func (f *pgFixture) reservation(t *testing.T, start time.Time, capacity int) Reservation {
	t.Helper()
	return Reservation{
		PatientID: f.patient(t),
		DoctorID:  f.doctor.ID,
		Date:      start.Format(calendar.DateLayout),
		SlotStart: start,
		SlotEnd:   start.Add(30 * time.Minute),
		Capacity:  capacity,
	}
}

func (f *pgFixture) eventLog(t *testing.T) []events.Event {
	t.Helper()
	evs, err := events.NewPgOutbox(f.pool).Unpublished(context.Background(), 1000)
	require.NoError(t, err)
	return evs
}

func TestPgRepository_ConcurrentReserveCapacityOne(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	const n = 20
	reservations := make([]Reservation, n)
	for i := range reservations {
		reservations[i] = f.reservation(t, at(9, 0), 1)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		booked []*Appointment
		full   int
		other  []error
	)
	for _, res := range reservations {
		wg.Add(1)
		go func(res Reservation) {
			defer wg.Done()
			a, err := f.repo.Reserve(ctx, res)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked = append(booked, a)
			case errors.Is(err, ErrSlotFull):
				full++
			default:
				other = append(other, err)
			}
		}(res)
	}
	wg.Wait()

	assert.Empty(t, other)
	require.Len(t, booked, 1)
	assert.Equal(t, n-1, full)
	assert.Equal(t, 1, booked[0].TokenNumber)
	assert.Equal(t, "2025-11-03", booked[0].Date)

	window, err := f.repo.ListByWindow(ctx, f.doctor.ID, at(9, 0))
	require.NoError(t, err)
	assert.Len(t, window, 1)

	evs := f.eventLog(t)
	require.Len(t, evs, 1, "a full slot writes no event")
	assert.Equal(t, events.AppointmentBooked, evs[0].Type)
	require.NotNil(t, evs[0].AppointmentID)
	assert.Equal(t, booked[0].ID, *evs[0].AppointmentID)
}

func TestPgRepository_ServiceConcurrentBookersCapacityOne(t *testing.T) {
	f := newPgFixture(t)
	cfg := testConfig(1)
	svc := NewService(f.repo, f.dir, lock.NewLocal(), cfg, zerolog.Nop())

	patients := make([]uuid.UUID, 15)
	for i := range patients {
		patients[i] = f.patient(t)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		full      int
		other     []error
	)
	for _, p := range patients {
		wg.Add(1)
		go func(p uuid.UUID) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), f.doctor.ID, testDate, at(10, 0), p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotFull):
				full++
			default:
				other = append(other, err)
			}
		}(p)
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, successes)
	assert.Equal(t, len(patients)-1, full)
}

func TestPgRepository_TokensNeverReused(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	first, err := f.repo.Reserve(ctx, f.reservation(t, at(9, 0), 2))
	require.NoError(t, err)
	second, err := f.repo.Reserve(ctx, f.reservation(t, at(9, 0), 2))
	require.NoError(t, err)
	assert.Equal(t, 1, first.TokenNumber)
	assert.Equal(t, 2, second.TokenNumber)

	_, err = f.repo.Reserve(ctx, f.reservation(t, at(9, 0), 2))
	require.ErrorIs(t, err, ErrSlotFull)

	_, err = f.repo.UpdateStatus(ctx, first.ID, StatusScheduled, StatusCancelled)
	require.NoError(t, err)

	third, err := f.repo.Reserve(ctx, f.reservation(t, at(9, 0), 2))
	require.NoError(t, err)
	assert.Equal(t, 3, third.TokenNumber)

	// a different window starts at 1
	other, err := f.repo.Reserve(ctx, f.reservation(t, at(9, 30), 2))
	require.NoError(t, err)
	assert.Equal(t, 1, other.TokenNumber)

	window, err := f.repo.ListByWindow(ctx, f.doctor.ID, at(9, 0))
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{window[0].TokenNumber, window[1].TokenNumber, window[2].TokenNumber})
	assert.Equal(t, StatusCancelled, window[0].Status)
}

func TestPgRepository_UpdateStatusGuard(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	a, err := f.repo.Reserve(ctx, f.reservation(t, at(11, 0), 1))
	require.NoError(t, err)

	_, err = f.repo.UpdateStatus(ctx, a.ID, StatusCompleted, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	done, err := f.repo.UpdateStatus(ctx, a.ID, StatusScheduled, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	// the second of two racing transitions loses
	_, err = f.repo.UpdateStatus(ctx, a.ID, StatusScheduled, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = f.repo.UpdateStatus(ctx, uuid.New(), StatusScheduled, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	got, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	evs := f.eventLog(t)
	require.Len(t, evs, 2)
	assert.Equal(t, events.AppointmentBooked, evs[0].Type)
	assert.Equal(t, events.AppointmentCompleted, evs[1].Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(evs[1].Payload, &payload))
	assert.Equal(t, f.doctor.ID.String(), payload["doctor_id"])
}

func TestPgRepository_Lists(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()

	res := f.reservation(t, at(10, 0), 3)
	a, err := f.repo.Reserve(ctx, res)
	require.NoError(t, err)
	res.SlotStart, res.SlotEnd = at(9, 0), at(9, 30)
	b, err := f.repo.Reserve(ctx, res)
	require.NoError(t, err)
	_, err = f.repo.Reserve(ctx, f.reservation(t, at(9, 0), 3))
	require.NoError(t, err)

	byPatient, err := f.repo.ListByPatientDate(ctx, res.PatientID, "2025-11-03")
	require.NoError(t, err)
	require.Len(t, byPatient, 2)
	assert.Equal(t, b.ID, byPatient[0].ID)
	assert.Equal(t, a.ID, byPatient[1].ID)

	byDoctor, err := f.repo.ListByDoctorDate(ctx, f.doctor.ID, "2025-11-03")
	require.NoError(t, err)
	assert.Len(t, byDoctor, 3)

	none, err := f.repo.ListByDoctorDate(ctx, f.doctor.ID, "2025-11-04")
	require.NoError(t, err)
	assert.Empty(t, none)
}
