package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/events"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation

	err := row.Scan(
		&c.ID,
		&c.AppointmentID,
		&c.Symptoms,
		&c.Prescription,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts c and its CONSULTATION_ADDED event in one transaction.
func (r *PgRepository) Create(ctx context.Context, c *Consultation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consultation insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		INSERT INTO consultations (id, appointment_id, symptoms, prescription, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at
	`, c.ID, c.AppointmentID, c.Symptoms, c.Prescription).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateConsultation
		}
		return fmt.Errorf("insert consultation: %w", err)
	}

	ev, err := addedEvent(c)
	if err != nil {
		return err
	}
	if err := events.Insert(ctx, tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consultation insert: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, symptoms, prescription, created_at
		FROM consultations
		WHERE id = $1
	`, id)
	return scanConsultation(row)
}

func (r *PgRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, symptoms, prescription, created_at
		FROM consultations
		WHERE appointment_id = $1
	`, appointmentID)
	return scanConsultation(row)
}

func (r *PgRepository) List(ctx context.Context, limit, offset int) ([]Consultation, error) {
	lim, off := db.Page(limit, offset)
	query, args, err := db.Dialect.From("consultations").
		Select("id", "appointment_id", "symptoms", "prescription", "created_at").
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(lim).
		Offset(off).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list consultations query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConsultationNotFound
	}
	return nil
}
