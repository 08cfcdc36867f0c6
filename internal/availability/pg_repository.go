package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/db"
)

const ruleColumns = `id, is_recurring, day_of_week, rule_date, start_time, end_time, slot_minutes, is_active, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
	q    db.Querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

// Helpers

func scanRule(row pgx.Row) (*Rule, error) {
	var (
		r         Rule
		recurring bool
		weekday   *int16
		date      pgtype.Date
		start     pgtype.Time
		end       pgtype.Time
	)

	err := row.Scan(
		&r.ID,
		&recurring,
		&weekday,
		&date,
		&start,
		&end,
		&r.SlotMinutes,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	switch {
	case recurring && weekday != nil:
		r.Schedule = Recurring{Weekday: calendar.Weekday(*weekday)}
	case !recurring && date.Valid:
		r.Schedule = OneOff{Date: db.ToDate(date)}
	default:
		return nil, fmt.Errorf("rule %s has no day identity", r.ID)
	}
	r.Start = db.ToTimeOfDay(start)
	r.End = db.ToTimeOfDay(end)

	return &r, nil
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scheduleArgs(s Schedule) (recurring bool, weekday *int16, date pgtype.Date) {
	switch v := s.(type) {
	case Recurring:
		wd := int16(v.Weekday)
		return true, &wd, pgtype.Date{}
	case OneOff:
		return false, nil, db.Date(v.Date)
	}
	return false, nil, pgtype.Date{}
}

// Interface methods

func (r *PgRepository) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE id = $1
	`, id)
	return scanRule(row)
}

// LockRule reads the rule FOR UPDATE. Bookings take FOR SHARE on the rules
// offering their slot, so the two wait for each other.
func (r *PgRepository) LockRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanRule(row)
}

func (r *PgRepository) ListRules(ctx context.Context, filter RuleFilter) ([]Rule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE ($1::boolean = false OR is_recurring)
		ORDER BY is_recurring DESC, day_of_week, rule_date, start_time
	`, filter.RecurringOnly)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) ListActiveForDate(ctx context.Context, date calendar.Date) ([]Rule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE is_active
		  AND ((is_recurring AND day_of_week = $1) OR (NOT is_recurring AND rule_date = $2))
		ORDER BY is_recurring DESC, start_time
	`, int16(date.Weekday()), db.Date(date))
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) ListActiveForSchedule(ctx context.Context, s Schedule) ([]Rule, error) {
	recurring, weekday, date := scheduleArgs(s)
	rows, err := r.q.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE is_active
		  AND is_recurring = $1
		  AND day_of_week IS NOT DISTINCT FROM $2
		  AND rule_date IS NOT DISTINCT FROM $3
		ORDER BY start_time
	`, recurring, weekday, date)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) CreateRule(ctx context.Context, rule *Rule) error {
	recurring, weekday, date := scheduleArgs(rule.Schedule)
	row := r.q.QueryRow(ctx, `
		INSERT INTO availability_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+ruleColumns,
		rule.ID, recurring, weekday, date, db.Time(rule.Start), db.Time(rule.End), rule.SlotMinutes, rule.Active)

	created, err := scanRule(row)
	if err != nil {
		return fmt.Errorf("insert availability rule: %w", err)
	}
	*rule = *created
	return nil
}

func (r *PgRepository) UpdateRule(ctx context.Context, rule *Rule) error {
	recurring, weekday, date := scheduleArgs(rule.Schedule)
	row := r.q.QueryRow(ctx, `
		UPDATE availability_rules
		SET is_recurring = $2,
		    day_of_week = $3,
		    rule_date = $4,
		    start_time = $5,
		    end_time = $6,
		    slot_minutes = $7,
		    is_active = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+ruleColumns,
		rule.ID, recurring, weekday, date, db.Time(rule.Start), db.Time(rule.End), rule.SlotMinutes, rule.Active)

	updated, err := scanRule(row)
	if err != nil {
		return err
	}
	*rule = *updated
	return nil
}

func (r *PgRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM availability_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// WithinTx takes a table lock that blocks other rule writers but not readers,
// so the conflict check and the write see the same set of rules.
func (r *PgRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.pool == nil {
		// already inside a transaction
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE availability_rules IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock availability rules: %w", err)
	}

	if err := fn(&PgRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
