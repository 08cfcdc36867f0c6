package slots

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
)

// DefaultHorizonDays bounds NextAvailableDate.
const DefaultHorizonDays = 30

// RuleSource yields the active rules for a date in resolution order.
type RuleSource interface {
	RulesForDate(ctx context.Context, date calendar.Date) ([]availability.Rule, error)
}

// Occupancy reports which start times on a date hold a pending or confirmed appointment.
type Occupancy interface {
	OccupiedTimes(ctx context.Context, date calendar.Date) (map[calendar.TimeOfDay]bool, error)
}

// View is one derived slot.
type View struct {
	Time            calendar.TimeOfDay `json:"time"`
	Available       bool               `json:"available"`
	SlotID          string             `json:"slot_id"`
	DurationMinutes int                `json:"duration"`
}

// Summary is the full picture for one date. Available + Booked == Total.
type Summary struct {
	Date      calendar.Date `json:"date"`
	Slots     []View        `json:"slots"`
	Total     int           `json:"total_slots"`
	Available int           `json:"available_slots"`
	Booked    int           `json:"booked_slots"`
	// Blocked is reported for API compatibility; nothing blocks a slot besides rules.
	Blocked int `json:"blocked_slots"`
}

type Resolver struct {
	rules     RuleSource
	occupancy Occupancy
}

func NewResolver(rules RuleSource, occupancy Occupancy) *Resolver {
	return &Resolver{rules: rules, occupancy: occupancy}
}

// SlotID identifies a slot by its owning rule and start time.
func SlotID(rule availability.Rule, t calendar.TimeOfDay) string {
	return rule.ID.String() + "_" + t.Compact()
}

// ResolveSlots returns every slot on date labelled free or taken.
func (r *Resolver) ResolveSlots(ctx context.Context, date calendar.Date) (Summary, error) {
	rules, err := r.rules.RulesForDate(ctx, date)
	if err != nil {
		return Summary{}, fmt.Errorf("load rules: %w", err)
	}

	sum := Summary{Date: date, Slots: []View{}}
	if len(rules) == 0 {
		return sum, nil
	}

	taken, err := r.occupancy.OccupiedTimes(ctx, date)
	if err != nil {
		return Summary{}, fmt.Errorf("load occupied times: %w", err)
	}

	for _, rule := range rules {
		for _, t := range Generate(rule.Start, rule.End, rule.SlotMinutes) {
			free := !taken[t]
			sum.Slots = append(sum.Slots, View{
				Time:            t,
				Available:       free,
				SlotID:          SlotID(rule, t),
				DurationMinutes: rule.SlotMinutes,
			})
			sum.Total++
			if free {
				sum.Available++
			} else {
				sum.Booked++
			}
		}
	}
	return sum, nil
}

// ResolveAvailableSlots returns only the free slots on date.
func (r *Resolver) ResolveAvailableSlots(ctx context.Context, date calendar.Date) ([]View, error) {
	sum, err := r.ResolveSlots(ctx, date)
	if err != nil {
		return nil, err
	}

	free := make([]View, 0, sum.Available)
	for _, v := range sum.Slots {
		if v.Available {
			free = append(free, v)
		}
	}
	return free, nil
}

// FindFreeSlot returns the free slot starting at t on date, if any.
func (r *Resolver) FindFreeSlot(ctx context.Context, date calendar.Date, t calendar.TimeOfDay) (View, bool, error) {
	free, err := r.ResolveAvailableSlots(ctx, date)
	if err != nil {
		return View{}, false, err
	}
	for _, v := range free {
		if v.Time == t {
			return v, true, nil
		}
	}
	return View{}, false, nil
}

// NextAvailableDate returns the first date after from, within horizonDays,
// that has at least one active rule. Bookings are not considered.
func (r *Resolver) NextAvailableDate(ctx context.Context, from calendar.Date, horizonDays int) (calendar.Date, bool, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	for i := 1; i <= horizonDays; i++ {
		d := from.AddDays(i)
		rules, err := r.rules.RulesForDate(ctx, d)
		if err != nil {
			return calendar.Date{}, false, fmt.Errorf("load rules for %s: %w", d, err)
		}
		if len(rules) > 0 {
			return d, true, nil
		}
	}
	return calendar.Date{}, false, nil
}
