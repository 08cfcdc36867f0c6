// Package slots turns availability rules into bookable slots and labels them
// free or taken against live appointments. Slots are derived on every call
// and never stored.
package slots

import "github.com/hackgods/clinic-booking/internal/calendar"

// Generate emits start, start+d, ... for as long as the slot start is before end.
func Generate(start, end calendar.TimeOfDay, durationMinutes int) []calendar.TimeOfDay {
	if durationMinutes <= 0 || start >= end {
		return nil
	}

	out := make([]calendar.TimeOfDay, 0, int(end-start)/durationMinutes+1)
	for t := start; t < end; t = t.AddMinutes(durationMinutes) {
		out = append(out, t)
	}
	return out
}
