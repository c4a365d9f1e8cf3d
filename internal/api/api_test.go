package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/calendar"
	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/consultation"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/events"
	"github.com/hackgods/mediqueue/internal/lock"
	"github.com/hackgods/mediqueue/internal/queue"
)

type testServer struct {
	handler http.Handler
	dir     *directory.MemoryRepository
	doctor  *directory.Doctor
}

func newTestServer(t *testing.T, capacity int, deps ...Dependency) *testServer {
	t.Helper()
	return newTestServerWithLocker(t, capacity, lock.NewLocal(), deps...)
}

func newTestServerWithLocker(t *testing.T, capacity int, locker lock.Locker, deps ...Dependency) *testServer {
	t.Helper()
	cfg := config.Config{
		Timezone:            "UTC",
		SlotDuration:        30 * time.Minute,
		SlotCapacity:        capacity,
		AvgConsultation:     15 * time.Minute,
		ReservationAttempts: 3,
		ReservationBackoff:  time.Millisecond,
	}

	dir := directory.NewMemoryRepository()
	doctor := &directory.Doctor{Name: "Dr. Nair", Specialization: "General", Availability: calendar.MustParseAvailability("Mon-Sat 09:00-12:00")}
	require.NoError(t, dir.CreateDoctor(context.Background(), doctor))

	outbox := events.NewMemoryOutbox()
	appts := appointment.NewMemoryRepository(outbox)
	logger := zerolog.Nop()

	handler := NewRouter(RouterConfig{
		Appointments:  appointment.NewService(appts, dir, locker, cfg, logger),
		Queue:         queue.NewService(appts, dir, cfg),
		Consultations: consultation.NewService(consultation.NewMemoryRepository(outbox), appts, logger),
		Directory:     dir,
		Logger:        logger,
		Location:      time.UTC,
		Clock:         func() time.Time { return time.Date(2025, 11, 3, 9, 10, 0, 0, time.UTC) },
		Dependencies:  deps,
		Env:           "test",
		Version:       "v0",
	})
	return &testServer{handler: handler, dir: dir, doctor: doctor}
}

func (s *testServer) patient(t *testing.T) uuid.UUID {
	t.Helper()
	p := &directory.Patient{Name: "patient"}
	require.NoError(t, s.dir.CreatePatient(context.Background(), p))
	return p.ID
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) book(t *testing.T, patient uuid.UUID, start string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/appointments", map[string]string{
		"doctor_id":  s.doctor.ID.String(),
		"patient_id": patient.String(),
		"date":       "2025-11-03",
		"start":      start,
	})
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_BookingFlow(t *testing.T) {
	s := newTestServer(t, 2)
	a, b, c := s.patient(t), s.patient(t), s.patient(t)

	rec := s.book(t, a, "09:00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	apptA := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, 1, apptA.TokenNumber)
	assert.Equal(t, "scheduled", apptA.Status)
	assert.Equal(t, "2025-11-03", apptA.Date)

	rec = s.book(t, b, "09:00")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.book(t, c, "09:00")
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, KindSlotFull, errResp.Error)
	assert.Equal(t, "2025-11-03T09:00:00Z", errResp.Details["slot_start"])
	assert.Equal(t, "2025-11-03T09:30:00Z", errResp.Details["slot_end"])

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.ID.String()+"/slots?date=2025-11-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decodeBody[SlotsResponse](t, rec)
	require.Len(t, slots.Slots, 6)
	assert.Equal(t, 0, slots.Slots[0].Remaining)
	assert.Equal(t, 2, slots.Slots[1].Remaining)

	rec = s.do(t, http.MethodPost, "/appointments/"+apptA.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/appointments/"+apptA.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, KindInvalidTransition, decodeBody[ErrorResponse](t, rec).Error)

	rec = s.book(t, c, "09:00")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, decodeBody[AppointmentResponse](t, rec).TokenNumber)
}

func TestAPI_BookingValidation(t *testing.T) {
	s := newTestServer(t, 2)
	p := s.patient(t)

	rec := s.book(t, p, "09:15")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, KindInvalidSlot, errResp.Error)
	assert.Equal(t, "2025-11-03T09:15:00Z", errResp.Details["slot_start"])

	rec = s.do(t, http.MethodPost, "/appointments", map[string]string{
		"doctor_id":  "not-a-uuid",
		"patient_id": p.String(),
		"date":       "03/11/2025",
		"start":      "9am",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp = decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, KindValidation, errResp.Error)
	assert.Contains(t, errResp.Details, "doctorid")
	assert.Contains(t, errResp.Details, "date")
	assert.Contains(t, errResp.Details, "start")

	rec = s.book(t, uuid.New(), "09:00")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

type heldLocker struct{}

func (heldLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return lock.ErrNotAcquired
}

func TestAPI_BookingSlotBusy(t *testing.T) {
	s := newTestServerWithLocker(t, 2, heldLocker{})

	rec := s.book(t, s.patient(t), "09:00")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, KindSlotBusy, errResp.Error)
	assert.Equal(t, "2025-11-03T09:00:00Z", errResp.Details["slot_start"])
}

func TestAPI_CompleteAndConsultation(t *testing.T) {
	s := newTestServer(t, 2)
	rec := s.book(t, s.patient(t), "10:00")
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decodeBody[AppointmentResponse](t, rec)

	body := map[string]string{"appointment_id": appt.ID.String(), "symptoms": "headache", "prescription": "rest"}

	rec = s.do(t, http.MethodPost, "/consultations", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, KindNotCompleted, decodeBody[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/consultations", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decodeBody[ConsultationResponse](t, rec)
	assert.Equal(t, appt.ID, c.AppointmentID)

	rec = s.do(t, http.MethodPost, "/consultations", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, KindDuplicateConsultation, decodeBody[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/consultations?appointment_id="+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ConsultationResponse](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/consultations/"+c.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/consultations/"+c.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/appointments/"+uuid.NewString()+"/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, KindNotFound, decodeBody[ErrorResponse](t, rec).Error)
}

func TestAPI_LiveQueue(t *testing.T) {
	s := newTestServer(t, 2)
	recA := s.book(t, s.patient(t), "09:00")
	require.Equal(t, http.StatusCreated, recA.Code)
	a := decodeBody[AppointmentResponse](t, recA)
	recB := s.book(t, s.patient(t), "09:00")
	require.Equal(t, http.StatusCreated, recB.Code)
	b := decodeBody[AppointmentResponse](t, recB)

	rec := s.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// default clock is 09:10, single doctor
	rec = s.do(t, http.MethodGet, "/queue/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	live := decodeBody[LiveQueueResponse](t, rec)
	require.NotNil(t, live.TimeSlot)
	assert.Equal(t, 1, live.Count)
	require.Len(t, live.Appointments, 1)
	assert.Equal(t, b.ID, live.Appointments[0].ID)

	rec = s.do(t, http.MethodGet, "/queue/live?doctor_id="+s.doctor.ID.String()+"&now=2025-11-03T13:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Nil(t, raw["time_slot"])
	assert.Equal(t, float64(0), raw["count"])
	assert.NotEmpty(t, raw["message"])

	rec = s.do(t, http.MethodGet, "/queue/live?now=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PatientStatus(t *testing.T) {
	s := newTestServer(t, 3)
	first, second := s.patient(t), s.patient(t)
	require.Equal(t, http.StatusCreated, s.book(t, first, "09:00").Code)
	require.Equal(t, http.StatusCreated, s.book(t, second, "09:00").Code)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/queue/patients/%s", second), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["inQueue"])
	assert.Equal(t, float64(1), got["position"])
	assert.Equal(t, float64(1), got["aheadCount"])
	assert.Equal(t, float64(15), got["estimatedWaitMinutes"])
	assert.Equal(t, "waiting", got["queueStatus"])
	assert.Equal(t, "2025-11-03T09:10:00Z", got["lastUpdated"])
	assert.Equal(t, "2025-11-03T09:15:00Z", got["expectedStartTime"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/queue/patients/%s?now=2025-11-03T08:00:00Z", second), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "pending", got["estimatedWaitMinutes"])
	assert.Equal(t, "upcoming", got["queueStatus"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/queue/patients/%s?now=2025-11-03T11:59:00Z", second), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, false, got["inQueue"])
	assert.NotContains(t, got, "position")

	rec = s.do(t, http.MethodGet, "/queue/patients/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListAppointmentsAndDoctors(t *testing.T) {
	s := newTestServer(t, 5)
	p := s.patient(t)
	for _, start := range []string{"09:00", "09:30", "10:00"} {
		require.Equal(t, http.StatusCreated, s.book(t, p, start).Code)
	}

	rec := s.do(t, http.MethodGet, "/appointments?patient_id="+p.String()+"&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]AppointmentResponse](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/appointments?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doctors := decodeBody[[]DoctorResponse](t, rec)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Mon 09:00-12:00; Tue 09:00-12:00; Wed 09:00-12:00; Thu 09:00-12:00; Fri 09:00-12:00; Sat 09:00-12:00", doctors[0].Availability)

	rec = s.do(t, http.MethodGet, "/doctors/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Health(t *testing.T) {
	down := PingFunc(func(context.Context) error { return errors.New("down") })
	up := PingFunc(func(context.Context) error { return nil })

	s := newTestServer(t, 1, Dependency{Name: "postgres", Pinger: up, Critical: true}, Dependency{Name: "redis", Pinger: down})
	rec := s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])

	s = newTestServer(t, 1, Dependency{Name: "postgres", Pinger: down, Critical: true})
	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[LivenessResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
