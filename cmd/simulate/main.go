package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string        `env:"SIM_API_BASE_URL" envDefault:"http://localhost:8080"`
	Duration      time.Duration `env:"SIM_DURATION" envDefault:"30s"`
	Workers       int           `env:"SIM_WORKERS" envDefault:"10"`
	BookingRatio  float64       `env:"SIM_BOOKING_RATIO" envDefault:"0.5"`
	CompleteRatio float64       `env:"SIM_COMPLETE_RATIO" envDefault:"0.1"`
	CancelRatio   float64       `env:"SIM_CANCEL_RATIO" envDefault:"0.05"`
	ReadRatio     float64       `env:"SIM_READ_RATIO" envDefault:"0.35"`
	DaysAhead     int           `env:"SIM_DAYS_AHEAD" envDefault:"7"`
	DoctorLimit   int           `env:"SIM_DOCTOR_LIMIT" envDefault:"100"`
	PatientLimit  int           `env:"SIM_PATIENT_LIMIT" envDefault:"4000"`
}

// normalize scales the ratios so they sum to one.
func (c *SimConfig) normalize() {
	total := c.BookingRatio + c.CompleteRatio + c.CancelRatio + c.ReadRatio
	if total <= 0 {
		return
	}
	c.BookingRatio /= total
	c.CompleteRatio /= total
	c.CancelRatio /= total
	c.ReadRatio /= total
}

func (c SimConfig) validate() error {
	if c.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if c.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if c.DaysAhead <= 0 {
		return errors.New("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

type DataPool struct {
	Doctors      []uuid.UUID
	Patients     []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) AppointmentCount() int {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return len(dp.appointments)
}

func main() {
	base, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("simulate", base.Env, base.LogLevel)

	var cfg SimConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("parse simulator env")
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if base.StoreBackend != config.BackendPostgres {
		logger.Fatal().Msg("simulate reads its data pool from Postgres, set STORE_BACKEND=postgres")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("complete", cfg.CompleteRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, base.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("doctors", len(dataPool.Doctors)).Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config:   cfg,
		pool:     dataPool,
		location: base.Location(),
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
	}

	if err := sim.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("simulation ended with error")
	}
	sim.PrintReport()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	doctors, err := loadIDs(ctx, pool, "doctors", cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	patients, err := loadIDs(ctx, pool, "patients", cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(doctors) == 0 {
		return nil, errors.New("no doctors loaded, run cmd/seed first")
	}
	if len(patients) == 0 {
		return nil, errors.New("no patients loaded, run cmd/seed first")
	}

	return &DataPool{Doctors: doctors, Patients: patients}, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, table string, limit int) ([]uuid.UUID, error) {
	sql, args, err := db.Dialect.From(table).Prepared(true).Select("id").Limit(uint(limit)).ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
