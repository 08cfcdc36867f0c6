package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/db"
)

const activeSlotIndex = "appointments_active_slot_uniq"

const appointmentColumns = `id, patient_name, patient_email, patient_phone, appointment_date, appointment_time, reason, status, notes, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a    Appointment
		date pgtype.Date
		t    pgtype.Time
	)

	err := row.Scan(
		&a.ID,
		&a.PatientName,
		&a.PatientEmail,
		&a.PatientPhone,
		&date,
		&t,
		&a.Reason,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = db.ToDate(date)
	a.Time = db.ToTimeOfDay(t)
	return &a, nil
}

func mapWriteErr(err error) error {
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return fmt.Errorf("%w: %v", ErrSlotTaken, err)
	}
	return err
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, int, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM appointments
		WHERE ($1::text IS NULL OR status = $1)
	`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := make([]Appointment, 0, f.Limit)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

// CreateAppointment inserts a live appointment only while an active rule
// offers its slot. The offering rules are held FOR SHARE until commit, so a
// concurrent rule update or delete (which takes FOR UPDATE) waits for the
// insert, or the insert waits and re-reads the changed rule.
func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if a.Status.IsActive() {
			if err := lockOffer(ctx, tx, a.Date, a.Time); err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_name, patient_email, patient_phone, appointment_date,
			                          appointment_time, reason, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			RETURNING `+appointmentColumns,
			a.ID, a.PatientName, a.PatientEmail, a.PatientPhone, db.Date(a.Date),
			db.Time(a.Time), a.Reason, a.Status, a.Notes)

		created, err := scanAppointment(row)
		if err != nil {
			return mapWriteErr(err)
		}
		*a = *created
		return nil
	})
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return a, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment, expected Status) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var (
			curDate pgtype.Date
			curTime pgtype.Time
		)
		err := tx.QueryRow(ctx, `
			SELECT appointment_date, appointment_time
			FROM appointments
			WHERE id = $1 AND status = $2
			FOR UPDATE
		`, a.ID, expected).Scan(&curDate, &curTime)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}

		moved := db.ToDate(curDate) != a.Date || db.ToTimeOfDay(curTime) != a.Time
		if moved && a.Status.IsActive() {
			if err := lockOffer(ctx, tx, a.Date, a.Time); err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET patient_name = $2,
			    patient_email = $3,
			    patient_phone = $4,
			    appointment_date = $5,
			    appointment_time = $6,
			    reason = $7,
			    status = $8,
			    notes = $9,
			    updated_at = now()
			WHERE id = $1
			  AND status = $10
			RETURNING `+appointmentColumns,
			a.ID, a.PatientName, a.PatientEmail, a.PatientPhone, db.Date(a.Date),
			db.Time(a.Time), a.Reason, a.Status, a.Notes, expected)

		updated, err := scanAppointment(row)
		if err != nil {
			return mapWriteErr(err)
		}
		*a = *updated
		return nil
	})
}

func (r *PgRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockOffer takes FOR SHARE on the active rules that generate date/t and
// fails with ErrSlotNotOffered when there are none.
func lockOffer(ctx context.Context, tx pgx.Tx, date calendar.Date, t calendar.TimeOfDay) error {
	rows, err := tx.Query(ctx, `
		SELECT id
		FROM availability_rules
		WHERE is_active
		  AND ((is_recurring AND day_of_week = $1) OR (NOT is_recurring AND rule_date = $2))
		  AND start_time <= $3::time
		  AND end_time > $3::time
		  AND (EXTRACT(EPOCH FROM ($3::time - start_time))::int / 60) % slot_minutes = 0
		FOR SHARE
	`, int16(date.Weekday()), db.Date(date), db.Time(t))
	if err != nil {
		return fmt.Errorf("lock offering rules: %w", err)
	}
	defer rows.Close()

	offered := false
	for rows.Next() {
		offered = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock offering rules: %w", err)
	}
	if !offered {
		return ErrSlotNotOffered
	}
	return nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) OccupiedTimes(ctx context.Context, date calendar.Date) (map[calendar.TimeOfDay]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE appointment_date = $1
		  AND status IN ('pending', 'confirmed')
	`, db.Date(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := make(map[calendar.TimeOfDay]bool)
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		occupied[db.ToTimeOfDay(t)] = true
	}

	return occupied, rows.Err()
}

func (r *PgRepository) CountActiveOnDate(ctx context.Context, date calendar.Date) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE appointment_date = $1
		  AND status IN ('pending', 'confirmed')
	`, db.Date(date)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context, from, to *calendar.Date) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE ($1::date IS NULL OR appointment_date >= $1)
		  AND ($2::date IS NULL OR appointment_date <= $2)
		GROUP BY status
	`, db.NullDate(from), db.NullDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int, len(AllStatuses))
	for rows.Next() {
		var (
			s Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}

	return counts, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
