package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-booking/internal/calendar"
)

const uniqueViolation = "23505"

const microsPerMinute = int64(time.Minute / time.Microsecond)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func Date(d calendar.Date) pgtype.Date {
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func NullDate(d *calendar.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return Date(*d)
}

func Time(t calendar.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsPerMinute, Valid: true}
}

func ToDate(d pgtype.Date) calendar.Date {
	return calendar.DateOf(d.Time)
}

func ToTimeOfDay(t pgtype.Time) calendar.TimeOfDay {
	return calendar.TimeOfDay(t.Microseconds / microsPerMinute)
}

// IsUniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
