package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/calendar"
)

var ErrRuleNotFound = errors.New("availability rule not found")

// Repository contains all storage interactions needed by the service.
type Repository interface {
	GetRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	// LockRule loads a rule and holds it against concurrent bookings until
	// the surrounding transaction ends. Only meaningful inside WithinTx.
	LockRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]Rule, error)

	// Active rules that generate slots on date, in any order
	ListActiveForDate(ctx context.Context, date calendar.Date) ([]Rule, error)
	// Active rules sharing the schedule's day identity, for conflict checks
	ListActiveForSchedule(ctx context.Context, schedule Schedule) ([]Rule, error)

	CreateRule(ctx context.Context, r *Rule) error
	UpdateRule(ctx context.Context, r *Rule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	// WithinTx runs fn against a repository bound to one transaction that
	// serializes concurrent rule writers. fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}

// Occupancy reports live (pending or confirmed) appointments on a date.
type Occupancy interface {
	CountActiveOnDate(ctx context.Context, date calendar.Date) (int, error)
}
