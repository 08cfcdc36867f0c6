package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
)

type RuleStore struct {
	s    *Store
	inTx bool
}

var _ availability.Repository = (*RuleStore)(nil)

func (r *RuleStore) GetRule(ctx context.Context, id uuid.UUID) (*availability.Rule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rule, ok := r.s.rules[id]
	if !ok {
		return nil, availability.ErrRuleNotFound
	}
	return &rule, nil
}

// LockRule is GetRule; WithinTx already holds the store's write lock.
func (r *RuleStore) LockRule(ctx context.Context, id uuid.UUID) (*availability.Rule, error) {
	return r.GetRule(ctx, id)
}

func (r *RuleStore) ListRules(ctx context.Context, filter availability.RuleFilter) ([]availability.Rule, error) {
	return r.collect(func(rule availability.Rule) bool {
		return !filter.RecurringOnly || rule.IsRecurring()
	}), nil
}

func (r *RuleStore) ListActiveForDate(ctx context.Context, date calendar.Date) ([]availability.Rule, error) {
	return r.collect(func(rule availability.Rule) bool {
		return rule.Active && rule.AppliesTo(date)
	}), nil
}

func (r *RuleStore) ListActiveForSchedule(ctx context.Context, schedule availability.Schedule) ([]availability.Rule, error) {
	return r.collect(func(rule availability.Rule) bool {
		return rule.Active && availability.SameDay(rule.Schedule, schedule)
	}), nil
}

func (r *RuleStore) CreateRule(ctx context.Context, rule *availability.Rule) error {
	defer r.serialize()()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := r.s.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r *RuleStore) UpdateRule(ctx context.Context, rule *availability.Rule) error {
	defer r.serialize()()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rules[rule.ID]; !ok {
		return availability.ErrRuleNotFound
	}
	rule.UpdatedAt = r.s.now()
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r *RuleStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	defer r.serialize()()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rules[id]; !ok {
		return availability.ErrRuleNotFound
	}
	delete(r.s.rules, id)
	return nil
}

// WithinTx serializes rule writers and restores the previous rule set when fn
// fails. Readers outside the transaction may observe its writes early.
// Writes made outside WithinTx and appointment bookings take the same lock,
// so a rollback never discards them.
func (r *RuleStore) WithinTx(ctx context.Context, fn func(tx availability.Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := r.s.snapshotRules()
	if err := fn(&RuleStore{s: r.s, inTx: true}); err != nil {
		r.s.restoreRules(snap)
		return err
	}
	return nil
}

// serialize takes the transaction lock for a write made outside WithinTx and
// returns its release.
func (r *RuleStore) serialize() func() {
	if r.inTx {
		return func() {}
	}
	r.s.txMu.Lock()
	return r.s.txMu.Unlock
}

func (r *RuleStore) collect(keep func(availability.Rule) bool) []availability.Rule {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []availability.Rule
	for _, rule := range r.s.rules {
		if keep(rule) {
			out = append(out, rule)
		}
	}
	return out
}
