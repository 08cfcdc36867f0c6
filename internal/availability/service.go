package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/errs"
)

// Limits bound the slot duration staff may configure.
type Limits struct {
	MinSlotMinutes int
	MaxSlotMinutes int
}

func DefaultLimits() Limits {
	return Limits{MinSlotMinutes: 15, MaxSlotMinutes: 120}
}

// Service owns availability rules: validation, overlap conflicts, and
// locking of dated rules that still have live appointments.
type Service struct {
	repo      Repository
	occupancy Occupancy
	limits    Limits
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, occupancy Occupancy, limits Limits, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		occupancy: occupancy,
		limits:    limits,
		log:       log.With().Str("component", "availability").Logger(),
		now:       time.Now,
	}
}

// AddRule validates and stores a single rule.
func (s *Service) AddRule(ctx context.Context, in RuleInput) (Rule, error) {
	rule := s.newRule(in)
	if err := s.validate(rule); err != nil {
		return Rule{}, err
	}

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		if err := checkConflict(ctx, tx, rule); err != nil {
			return err
		}
		return tx.CreateRule(ctx, &rule)
	})
	if err != nil {
		return Rule{}, wrapStoreErr("add rule", err)
	}

	s.log.Info().Str("rule_id", rule.ID.String()).Str("rule", rule.String()).Msg("availability rule created")
	return rule, nil
}

// AddRecurringRules creates one recurring rule per weekday. A conflict on any
// day fails the whole batch and nothing is stored.
func (s *Service) AddRecurringRules(ctx context.Context, days []calendar.Weekday, start, end calendar.TimeOfDay, slotMinutes int) ([]Rule, error) {
	if len(days) == 0 {
		return nil, errs.Validation("days", "at least one weekday is required")
	}

	seen := make(map[calendar.Weekday]bool, len(days))
	rules := make([]Rule, 0, len(days))
	for _, day := range days {
		if seen[day] {
			return nil, errs.Validation("days", fmt.Sprintf("%s listed more than once", day))
		}
		seen[day] = true

		rule := s.newRule(RuleInput{Schedule: Recurring{Weekday: day}, Start: start, End: end, SlotMinutes: slotMinutes})
		if err := s.validate(rule); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		for i := range rules {
			if err := checkConflict(ctx, tx, rules[i]); err != nil {
				return err
			}
			if err := tx.CreateRule(ctx, &rules[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("add recurring rules", err)
	}

	s.log.Info().Int("count", len(rules)).Str("window", start.String()+"-"+end.String()).Msg("recurring availability created")
	return rules, nil
}

// UpdateRule applies a partial update. Dated rules with live appointments are locked.
// The lock check and the write share one transaction, and the rule row stays
// locked against bookings until it commits.
func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, patch RulePatch) (Rule, error) {
	var updated Rule
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		current, err := tx.LockRule(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkLocked(ctx, *current, "modify"); err != nil {
			return err
		}

		updated = applyRulePatch(*current, patch)
		if err := s.validate(updated); err != nil {
			return err
		}
		updated.UpdatedAt = s.now()

		if err := checkConflict(ctx, tx, updated); err != nil {
			return err
		}
		return tx.UpdateRule(ctx, &updated)
	})
	if err != nil {
		return Rule{}, wrapStoreErr("update rule", err)
	}

	s.log.Info().Str("rule_id", id.String()).Str("rule", updated.String()).Bool("active", updated.Active).Msg("availability rule updated")
	return updated, nil
}

func applyRulePatch(r Rule, patch RulePatch) Rule {
	if patch.Schedule != nil {
		r.Schedule = patch.Schedule
	}
	if patch.Start != nil {
		r.Start = *patch.Start
	}
	if patch.End != nil {
		r.End = *patch.End
	}
	if patch.SlotMinutes != nil {
		r.SlotMinutes = *patch.SlotMinutes
	}
	if patch.Active != nil {
		r.Active = *patch.Active
	}
	return r
}

// DeleteRule removes a rule unless it is a dated rule with live appointments.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	var deleted Rule
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		current, err := tx.LockRule(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkLocked(ctx, *current, "delete"); err != nil {
			return err
		}
		deleted = *current
		return tx.DeleteRule(ctx, id)
	})
	if err != nil {
		return wrapStoreErr("delete rule", err)
	}

	s.log.Info().Str("rule_id", id.String()).Str("rule", deleted.String()).Msg("availability rule deleted")
	return nil
}

// GetRule returns one rule by id.
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (Rule, error) {
	return s.getRule(ctx, id)
}

// ListRules returns recurring rules by weekday then start, followed by
// one-off rules by date then start.
func (s *Service) ListRules(ctx context.Context, filter RuleFilter) ([]Rule, error) {
	rules, err := s.repo.ListRules(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	slices.SortStableFunc(rules, compareForListing)
	return rules, nil
}

// RulesForDate returns the active rules that generate slots on date:
// recurring rules first, then one-off rules, each ordered by start time.
func (s *Service) RulesForDate(ctx context.Context, date calendar.Date) ([]Rule, error) {
	rules, err := s.repo.ListActiveForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("rules for %s: %w", date, err)
	}

	out := rules[:0]
	for _, r := range rules {
		if r.AppliesTo(date) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Rule) int {
		if a.IsRecurring() != b.IsRecurring() {
			if a.IsRecurring() {
				return -1
			}
			return 1
		}
		return int(a.Start - b.Start)
	})
	return out, nil
}

func (s *Service) newRule(in RuleInput) Rule {
	now := s.now()
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	minutes := in.SlotMinutes
	if minutes == 0 {
		minutes = DefaultSlotMinutes
	}
	return Rule{
		ID:          uuid.New(),
		Schedule:    in.Schedule,
		Start:       in.Start,
		End:         in.End,
		SlotMinutes: minutes,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Service) validate(r Rule) error {
	switch sch := r.Schedule.(type) {
	case nil:
		return errs.Validation("schedule", "either day_of_week (recurring) or date (one-off) is required")
	case Recurring:
		if !sch.Weekday.Valid() {
			return errs.Validation("day_of_week", "must be between 0 (Monday) and 6 (Sunday)")
		}
	case OneOff:
		if sch.Date.IsZero() {
			return errs.Validation("date", "is required for a one-off rule")
		}
	}
	if !r.Start.Valid() {
		return errs.Validation("start_time", "must be a time of day")
	}
	if !r.End.Valid() {
		return errs.Validation("end_time", "must be a time of day")
	}
	if r.Start >= r.End {
		return errs.Validation("end_time", "end time must be after start time")
	}
	if r.SlotMinutes < s.limits.MinSlotMinutes || r.SlotMinutes > s.limits.MaxSlotMinutes {
		return errs.Validation("slot_duration", fmt.Sprintf("must be between %d and %d minutes", s.limits.MinSlotMinutes, s.limits.MaxSlotMinutes))
	}
	return nil
}

func (s *Service) getRule(ctx context.Context, id uuid.UUID) (Rule, error) {
	r, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return Rule{}, wrapStoreErr("get rule", err)
	}
	return *r, nil
}

func (s *Service) checkLocked(ctx context.Context, r Rule, action string) error {
	date, ok := r.OneOffDate()
	if !ok {
		return nil
	}
	n, err := s.occupancy.CountActiveOnDate(ctx, date)
	if err != nil {
		return fmt.Errorf("count appointments on %s: %w", date, err)
	}
	if n > 0 {
		return errs.Locked(
			fmt.Sprintf("cannot %s availability with %d existing appointments, cancel appointments first", action, n),
			map[string]any{"date": date.String(), "appointments": n},
		)
	}
	return nil
}

// checkConflict rejects candidate if it overlaps another active rule on the same day.
// Inactive candidates never conflict.
func checkConflict(ctx context.Context, tx Repository, candidate Rule) error {
	if !candidate.Active {
		return nil
	}
	existing, err := tx.ListActiveForSchedule(ctx, candidate.Schedule)
	if err != nil {
		return fmt.Errorf("load rules for %s: %w", candidate.Schedule.Label(), err)
	}
	for _, other := range existing {
		if other.ID == candidate.ID || !other.Active {
			continue
		}
		if candidate.Overlaps(other) {
			return errs.Conflict(
				fmt.Sprintf("conflict detected for %s: overlapping availability %s-%s already exists", candidate.Schedule.Label(), other.Start, other.End),
				map[string]any{
					"day":            candidate.Schedule.Label(),
					"existing_id":    other.ID.String(),
					"existing_start": other.Start.String(),
					"existing_end":   other.End.String(),
				},
			)
		}
	}
	return nil
}

func compareForListing(a, b Rule) int {
	ar, aRec := a.Schedule.(Recurring)
	br, bRec := b.Schedule.(Recurring)
	switch {
	case aRec && !bRec:
		return -1
	case !aRec && bRec:
		return 1
	case aRec && bRec && ar.Weekday != br.Weekday:
		return int(ar.Weekday - br.Weekday)
	case !aRec && !bRec:
		ad, _ := a.OneOffDate()
		bd, _ := b.OneOffDate()
		if ad != bd {
			if ad.Before(bd) {
				return -1
			}
			return 1
		}
	}
	return int(a.Start - b.Start)
}

func wrapStoreErr(op string, err error) error {
	if _, ok := errs.As(err); ok {
		return err
	}
	if errors.Is(err, ErrRuleNotFound) {
		return errs.NotFound("availability rule", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
