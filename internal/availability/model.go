package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/calendar"
)

const DefaultSlotMinutes = 30

// Schedule is either Recurring or OneOff.
type Schedule interface {
	// Label names the day identity, e.g. "Monday" or "2026-10-21".
	Label() string
	isSchedule()
}

// Recurring repeats every week on Weekday.
type Recurring struct {
	Weekday calendar.Weekday
}

// OneOff applies to a single calendar date.
type OneOff struct {
	Date calendar.Date
}

func (r Recurring) Label() string { return r.Weekday.String() }
func (o OneOff) Label() string    { return o.Date.String() }

func (Recurring) isSchedule() {}
func (OneOff) isSchedule()    {}

// SameDay reports whether a and b are the same kind and the same day identity.
func SameDay(a, b Schedule) bool {
	switch x := a.(type) {
	case Recurring:
		y, ok := b.(Recurring)
		return ok && x.Weekday == y.Weekday
	case OneOff:
		y, ok := b.(OneOff)
		return ok && x.Date == y.Date
	}
	return false
}

// Rule is a window of bookable time from which slots are derived.
type Rule struct {
	ID          uuid.UUID
	Schedule    Schedule
	Start       calendar.TimeOfDay
	End         calendar.TimeOfDay
	SlotMinutes int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Rule) IsRecurring() bool {
	_, ok := r.Schedule.(Recurring)
	return ok
}

// OneOffDate returns the bound date of a one-off rule.
func (r Rule) OneOffDate() (calendar.Date, bool) {
	o, ok := r.Schedule.(OneOff)
	return o.Date, ok
}

// AppliesTo reports whether an active rule contributes slots on d.
func (r Rule) AppliesTo(d calendar.Date) bool {
	if !r.Active {
		return false
	}
	switch s := r.Schedule.(type) {
	case Recurring:
		return s.Weekday == d.Weekday()
	case OneOff:
		return s.Date == d
	}
	return false
}

// Offers reports whether the rule generates a slot starting at t on d.
func (r Rule) Offers(d calendar.Date, t calendar.TimeOfDay) bool {
	if !r.AppliesTo(d) || r.SlotMinutes <= 0 {
		return false
	}
	return t >= r.Start && t < r.End && int(t-r.Start)%r.SlotMinutes == 0
}

// Overlaps uses half-open intervals, so rules that only touch do not overlap.
func (r Rule) Overlaps(o Rule) bool {
	return SameDay(r.Schedule, o.Schedule) && r.Start < o.End && r.End > o.Start
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s-%s", r.Schedule.Label(), r.Start, r.End)
}

// RuleInput describes a new rule. Zero SlotMinutes means DefaultSlotMinutes; nil Active means true.
type RuleInput struct {
	Schedule    Schedule
	Start       calendar.TimeOfDay
	End         calendar.TimeOfDay
	SlotMinutes int
	Active      *bool
}

// RulePatch is a partial update; nil fields are left unchanged.
type RulePatch struct {
	Schedule    Schedule
	Start       *calendar.TimeOfDay
	End         *calendar.TimeOfDay
	SlotMinutes *int
	Active      *bool
}

// RuleFilter narrows staff listings.
type RuleFilter struct {
	RecurringOnly bool
}
