package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const appointmentColumns = `id, patient_id, doctor_id, to_char(appt_date, 'YYYY-MM-DD'), slot_start, slot_end, token_number, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.SlotStart,
		&a.SlotEnd,
		&a.TokenNumber,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// conflict maps errors another reservation can cause on the same window to
// ErrReservationConflict.
func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", // unique_violation on (doctor_id, slot_start, token_number)
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return fmt.Errorf("%w: %s", ErrReservationConflict, pgErr.Message)
		}
	}
	return err
}

// recordTx writes a's lifecycle event inside tx.
func recordTx(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	ev, err := lifecycleEvent(a)
	if err != nil {
		return err
	}
	return events.Insert(ctx, tx, ev)
}

// Reserve locks the window's slot_tokens row, so concurrent reservations on
// the same window queue behind it while other windows proceed. The booking
// event is committed with the appointment.
func (r *PgRepository) Reserve(ctx context.Context, res Reservation) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reservation: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO slot_tokens (doctor_id, slot_start, last_token)
		VALUES ($1, $2, 0)
		ON CONFLICT (doctor_id, slot_start) DO NOTHING
	`, res.DoctorID, res.SlotStart)
	if err != nil {
		return nil, conflict(err)
	}

	var lastToken int
	err = tx.QueryRow(ctx, `
		SELECT last_token
		FROM slot_tokens
		WHERE doctor_id = $1 AND slot_start = $2
		FOR UPDATE
	`, res.DoctorID, res.SlotStart).Scan(&lastToken)
	if err != nil {
		return nil, conflict(err)
	}

	var occupied int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND slot_start = $2
		  AND status <> 'cancelled'
	`, res.DoctorID, res.SlotStart).Scan(&occupied)
	if err != nil {
		return nil, conflict(err)
	}
	if occupied >= res.Capacity {
		return nil, ErrSlotFull
	}

	token := lastToken + 1
	_, err = tx.Exec(ctx, `
		UPDATE slot_tokens
		SET last_token = $3
		WHERE doctor_id = $1 AND slot_start = $2
	`, res.DoctorID, res.SlotStart, token)
	if err != nil {
		return nil, conflict(err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appt_date, slot_start, slot_end, token_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, 'scheduled', now(), now())
		RETURNING `+appointmentColumns,
		uuid.New(), res.PatientID, res.DoctorID, res.Date, res.SlotStart, res.SlotEnd, token)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, conflict(err)
	}

	if err := recordTx(ctx, tx, appt); err != nil {
		return nil, conflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, conflict(err)
	}
	return appt, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// UpdateStatus moves id from one status to another only if it is still in
// from, and commits the matching event with it.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}
	if err := recordTx(ctx, tx, appt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) ListByWindow(ctx context.Context, doctorID uuid.UUID, slotStart time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND slot_start = $2
		ORDER BY token_number
	`, doctorID, slotStart)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PgRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2::date
		ORDER BY slot_start, token_number
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PgRepository) ListByPatientDate(ctx context.Context, patientID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND appt_date = $2::date
		ORDER BY slot_start, token_number
	`, patientID, date)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	ds := db.Dialect.From("appointments").Select(
		goqu.C("id"),
		goqu.C("patient_id"),
		goqu.C("doctor_id"),
		goqu.L("to_char(appt_date, 'YYYY-MM-DD')"),
		goqu.C("slot_start"),
		goqu.C("slot_end"),
		goqu.C("token_number"),
		goqu.C("status"),
		goqu.C("created_at"),
		goqu.C("updated_at"),
	)
	where := goqu.Ex{}
	if f.DoctorID != uuid.Nil {
		where["doctor_id"] = f.DoctorID.String()
	}
	if f.PatientID != uuid.Nil {
		where["patient_id"] = f.PatientID.String()
	}
	if f.Status != "" {
		where["status"] = string(f.Status)
	}
	if len(where) > 0 {
		ds = ds.Where(where)
	}
	if f.Date != "" {
		ds = ds.Where(goqu.L("appt_date = ?::date", f.Date))
	}

	lim, off := db.Page(f.Limit, f.Offset)
	query, args, err := ds.
		Order(goqu.C("slot_start").Asc(), goqu.C("doctor_id").Asc(), goqu.C("token_number").Asc()).
		Limit(lim).
		Offset(off).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list appointments query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}
