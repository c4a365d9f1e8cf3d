package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/mediqueue/internal/calendar"
	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/logging"
)

const (
	doctorCount  = 40
	patientCount = 5000
	batchSize    = 500
)

var specializations = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var schedules = []string{
	"Mon-Sat 9am-5pm",
	"Mon-Fri 09:00-13:00 14:00-18:00",
	"Mon,Wed,Fri 10am-4pm",
	"Tue,Thu 08:00-12:00; Sat 09:00-11:00",
	"daily 11am-7pm",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal().Msg("seed needs STORE_BACKEND=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), directory.NewPgRepository(pool), doctorCount, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, patientCount, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, repo directory.Repository, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	for i := 0; i < count; i++ {
		avail, err := calendar.ParseAvailability(schedules[gofakeit.Number(0, len(schedules)-1)])
		if err != nil {
			return err
		}

		d := &directory.Doctor{
			Name:           "Dr. " + gofakeit.Name(),
			Specialization: specializations[gofakeit.Number(0, len(specializations)-1)],
			Availability:   avail,
			Contact:        gofakeit.Phone(),
		}
		// A few doctors run smaller slots than the clinic default.
		if gofakeit.Number(0, 4) == 0 {
			d.SlotCapacity = gofakeit.Number(1, 3)
		}

		if err := repo.CreateDoctor(ctx, d); err != nil {
			return err
		}
	}

	logger.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	genders := []string{"female", "male", "other"}

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		rows := make([]any, 0, end-offset)
		for i := offset; i < end; i++ {
			rows = append(rows, goqu.Record{
				"id":      uuid.New(),
				"name":    gofakeit.Name(),
				"age":     gofakeit.Number(1, 95),
				"gender":  genders[gofakeit.Number(0, len(genders)-1)],
				"contact": gofakeit.Email(),
			})
		}

		sql, args, err := db.Dialect.Insert("patients").Prepared(true).Rows(rows...).ToSQL()
		if err != nil {
			return fmt.Errorf("build patient batch: %w", err)
		}
		if _, err := pool.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert patient batch: %w", err)
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}
