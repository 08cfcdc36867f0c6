package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/calendar"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when a write would give a slot two live appointments.
	ErrSlotTaken = errors.New("slot already has an active appointment")
	// ErrSlotNotOffered is returned when no active availability rule generates
	// the slot a live appointment is written to.
	ErrSlotNotOffered = errors.New("no availability rule offers this slot")
)

type Filter struct {
	Status *Status
	Limit  int
	Offset int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, int, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a *Appointment) error
	// UpdateAppointmentStatus applies from -> to only if the row is still in from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// UpdateAppointment writes every field of a, guarded by the expected status.
	UpdateAppointment(ctx context.Context, a *Appointment, expected Status) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Slot occupancy
	OccupiedTimes(ctx context.Context, date calendar.Date) (map[calendar.TimeOfDay]bool, error)
	CountActiveOnDate(ctx context.Context, date calendar.Date) (int, error)

	CountByStatus(ctx context.Context, from, to *calendar.Date) (map[Status]int, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
