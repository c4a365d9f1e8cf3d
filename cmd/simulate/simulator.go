package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Simulator struct {
	config   SimConfig
	pool     *DataPool
	location *time.Location
	logger   zerolog.Logger
	client   *http.Client
	metrics  Metrics
}

type slotView struct {
	Start     time.Time `json:"start"`
	Remaining int       `json:"remaining"`
}

func (s *Simulator) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(gctx, workerID)
			return nil
		})
	}

	err := g.Wait()
	s.logger.Info().Msg("simulation complete")
	return err
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.CompleteRatio:
			s.doTransition(ctx, rng, "complete", &s.metrics.Complete)
		case r < c.BookingRatio+c.CompleteRatio+c.CancelRatio:
			s.doTransition(ctx, rng, "cancel", &s.metrics.Cancel)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doLiveQueue(ctx, rng)
			case 1:
				s.doPatientStatus(ctx, rng)
			case 2:
				s.doListByPatient(ctx, rng)
			}
		}
	}
}

// call performs one request and reports its latency and status code. A
// transport error yields status 0.
func (s *Simulator) call(ctx context.Context, method, path string, body any, out any) (time.Duration, int) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return latency, resp.StatusCode
}

func (s *Simulator) randomDate(rng *rand.Rand) time.Time {
	return time.Now().In(s.location).AddDate(0, 0, rng.Intn(s.config.DaysAhead))
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := s.randomDate(rng).Format("2006-01-02")

	var slots struct {
		Slots []slotView `json:"slots"`
	}
	latency, status := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, date), nil, &slots)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Slots.Record(latency, status == http.StatusOK, false)
	if status != http.StatusOK || len(slots.Slots) == 0 {
		return
	}

	// Prefer windows with room but still hit full ones now and then to
	// exercise the rejection path.
	slot := slots.Slots[rng.Intn(len(slots.Slots))]
	for i := 0; i < 3 && slot.Remaining == 0; i++ {
		slot = slots.Slots[rng.Intn(len(slots.Slots))]
	}

	body := map[string]string{
		"doctor_id":  doctorID.String(),
		"patient_id": patientID.String(),
		"date":       date,
		"start":      slot.Start.In(s.location).Format("15:04"),
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	latency, status = s.call(ctx, http.MethodPost, "/appointments", body, &created)
	if ctx.Err() != nil {
		return
	}

	success := status == http.StatusCreated
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, action string, om *OperationMetrics) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	latency, status := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/%s", apptID, action), nil, nil)
	if ctx.Err() != nil {
		return
	}
	om.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doLiveQueue(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	latency, status := s.call(ctx, http.MethodGet, "/queue/live?doctor_id="+url.QueryEscape(doctorID.String()), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.LiveQueue.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doPatientStatus(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	latency, status := s.call(ctx, http.MethodGet, fmt.Sprintf("/queue/patients/%s", patientID), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.PatientStatus.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	latency, status := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/appointments?patient_id=%s&limit=20&offset=0", patientID), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.ListByPatient.Record(latency, status == http.StatusOK, false)
}
