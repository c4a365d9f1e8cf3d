package consultation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/calendar"
	"github.com/hackgods/mediqueue/internal/db/dbtest"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/events"
)

func TestPgRepository_OncePerAppointment(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()

	dir := directory.NewPgRepository(pool)
	doctor := &directory.Doctor{Name: "Dr. Shah", Availability: calendar.MustParseAvailability("Mon 09:00-10:00")}
	require.NoError(t, dir.CreateDoctor(ctx, doctor))
	patient := &directory.Patient{Name: "patient"}
	require.NoError(t, dir.CreatePatient(ctx, patient))

	appts := appointment.NewPgRepository(pool)
	start := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	a, err := appts.Reserve(ctx, appointment.Reservation{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      "2025-11-03",
		SlotStart: start,
		SlotEnd:   start.Add(30 * time.Minute),
		Capacity:  1,
	})
	require.NoError(t, err)
	_, err = appts.UpdateStatus(ctx, a.ID, appointment.StatusScheduled, appointment.StatusCompleted)
	require.NoError(t, err)

	repo := NewPgRepository(pool)
	c := &Consultation{AppointmentID: a.ID, Symptoms: "fever", Prescription: "rest"}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	err = repo.Create(ctx, &Consultation{AppointmentID: a.ID, Symptoms: "again"})
	assert.ErrorIs(t, err, ErrDuplicateConsultation)

	got, err := repo.GetByAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "rest", got.Prescription)

	evs, err := events.NewPgOutbox(pool).Unpublished(ctx, 10)
	require.NoError(t, err)
	var types []events.Type
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []events.Type{
		events.AppointmentBooked,
		events.AppointmentCompleted,
		events.ConsultationAdded,
	}, types)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrConsultationNotFound)
}
