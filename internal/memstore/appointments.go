package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/calendar"
)

type AppointmentStore struct {
	s *Store
}

var _ appointment.Repository = (*AppointmentStore)(nil)

func (a *AppointmentStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	appt, ok := a.s.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &appt, nil
}

func (a *AppointmentStore) ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, int, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var matched []appointment.Appointment
	for _, appt := range a.s.appts {
		if f.Status == nil || appt.Status == *f.Status {
			matched = append(matched, appt)
		}
	}

	slices.SortFunc(matched, func(x, y appointment.Appointment) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID.String(), y.ID.String())
	})

	total := len(matched)
	lo := min(f.Offset, total)
	hi := total
	if f.Limit > 0 {
		hi = min(lo+f.Limit, total)
	}
	return append([]appointment.Appointment{}, matched[lo:hi]...), total, nil
}

func (a *AppointmentStore) CreateAppointment(ctx context.Context, appt *appointment.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// rule writers must not interleave with the offer check below
	a.s.txMu.Lock()
	defer a.s.txMu.Unlock()
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if appt.Status.IsActive() {
		if !a.offeredLocked(appt.Date, appt.Time) {
			return appointment.ErrSlotNotOffered
		}
		if a.slotTakenLocked(appt.Date, appt.Time, uuid.Nil) {
			return appointment.ErrSlotTaken
		}
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := a.s.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	a.s.appts[appt.ID] = *appt
	return nil
}

func (a *AppointmentStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	appt, ok := a.s.appts[id]
	if !ok || appt.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	if to.IsActive() && !from.IsActive() && a.slotTakenLocked(appt.Date, appt.Time, id) {
		return nil, appointment.ErrSlotTaken
	}

	appt.Status = to
	appt.UpdatedAt = a.s.now()
	a.s.appts[id] = appt
	return &appt, nil
}

func (a *AppointmentStore) UpdateAppointment(ctx context.Context, appt *appointment.Appointment, expected appointment.Status) error {
	a.s.txMu.Lock()
	defer a.s.txMu.Unlock()
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	existing, ok := a.s.appts[appt.ID]
	if !ok || existing.Status != expected {
		return appointment.ErrAppointmentNotFound
	}
	moved := existing.Date != appt.Date || existing.Time != appt.Time
	if moved && appt.Status.IsActive() && !a.offeredLocked(appt.Date, appt.Time) {
		return appointment.ErrSlotNotOffered
	}
	if appt.Status.IsActive() && a.slotTakenLocked(appt.Date, appt.Time, appt.ID) {
		return appointment.ErrSlotTaken
	}

	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = a.s.now()
	a.s.appts[appt.ID] = *appt
	return nil
}

func (a *AppointmentStore) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if _, ok := a.s.appts[id]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	delete(a.s.appts, id)
	return nil
}

func (a *AppointmentStore) OccupiedTimes(ctx context.Context, date calendar.Date) (map[calendar.TimeOfDay]bool, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	occupied := make(map[calendar.TimeOfDay]bool)
	for _, appt := range a.s.appts {
		if appt.Date == date && appt.Status.IsActive() {
			occupied[appt.Time] = true
		}
	}
	return occupied, nil
}

func (a *AppointmentStore) CountActiveOnDate(ctx context.Context, date calendar.Date) (int, error) {
	occupied, err := a.OccupiedTimes(ctx, date)
	return len(occupied), err
}

func (a *AppointmentStore) CountByStatus(ctx context.Context, from, to *calendar.Date) (map[appointment.Status]int, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	counts := make(map[appointment.Status]int)
	for _, appt := range a.s.appts {
		if from != nil && appt.Date.Before(*from) {
			continue
		}
		if to != nil && appt.Date.After(*to) {
			continue
		}
		counts[appt.Status]++
	}
	return counts, nil
}

func (a *AppointmentStore) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	ev.ID = int64(len(a.s.events) + 1)
	a.s.events = append(a.s.events, ev)
	return nil
}

// offeredLocked reports whether an active rule generates date/t.
func (a *AppointmentStore) offeredLocked(date calendar.Date, t calendar.TimeOfDay) bool {
	for _, rule := range a.s.rules {
		if rule.Offers(date, t) {
			return true
		}
	}
	return false
}

// slotTakenLocked reports whether another live appointment holds date/t.
func (a *AppointmentStore) slotTakenLocked(date calendar.Date, t calendar.TimeOfDay, except uuid.UUID) bool {
	for id, appt := range a.s.appts {
		if id != except && appt.Date == date && appt.Time == t && appt.Status.IsActive() {
			return true
		}
	}
	return false
}
