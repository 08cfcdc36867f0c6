package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/errs"
	"github.com/hackgods/clinic-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slots"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentUpdated       = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SlotChecker answers whether a slot is generated and free right now.
type SlotChecker interface {
	FindFreeSlot(ctx context.Context, date calendar.Date, t calendar.TimeOfDay) (slots.View, bool, error)
}

// Notifier delivers patient and admin messages. The bool reports whether a
// message was sent or queued.
type Notifier interface {
	NotifyAdminOfNewBooking(ctx context.Context, appt Appointment) (bool, error)
	NotifyStatusChange(ctx context.Context, appt Appointment, previous Status) (bool, error)
}

type Options struct {
	// Location decides what "today" is for past-date checks.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo     Repository
	slots    SlotChecker
	locker   redisclient.Locker
	notifier Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, checker SlotChecker, locker redisclient.Locker, notifier Notifier, m *metrics.Metrics, log zerolog.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		slots:    checker,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		log:      log.With().Str("component", "appointment").Logger(),
		validate: newValidator(),
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// Today is the current date in the clinic's location.
func (s *Service) Today() calendar.Date {
	return calendar.DateOf(s.now().In(s.loc))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return Appointment{}, wrapStoreErr(err, "load appointment")
	}
	return *appt, nil
}

// List pages through appointments, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	if q.Status != nil && !q.Status.Valid() {
		return Page{}, errs.Validation("status", fmt.Sprintf("unknown status %q", *q.Status))
	}

	limit := q.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	page := max(q.Page, 1)

	items, total, err := s.repo.ListAppointments(ctx, Filter{Status: q.Status, Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return Page{}, fmt.Errorf("list appointments: %w", err)
	}

	totalPages := max((total+limit-1)/limit, 1)
	if page > totalPages {
		// out of range pages fall back to the last one
		page = totalPages
		items, total, err = s.repo.ListAppointments(ctx, Filter{Status: q.Status, Limit: limit, Offset: (page - 1) * limit})
		if err != nil {
			return Page{}, fmt.Errorf("list appointments: %w", err)
		}
	}

	return Page{
		Appointments: items,
		Total:        total,
		TotalPages:   totalPages,
		CurrentPage:  page,
		Limit:        limit,
		HasNext:      page < totalPages,
		HasPrevious:  page > 1,
	}, nil
}

func (s *Service) Stats(ctx context.Context, q StatsQuery) (Stats, error) {
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return Stats{}, errs.Validation("to", "end date must not be before start date")
	}

	counts, err := s.repo.CountByStatus(ctx, q.From, q.To)
	if err != nil {
		return Stats{}, fmt.Errorf("count appointments: %w", err)
	}

	st := Stats{
		Pending:   counts[StatusPending],
		Confirmed: counts[StatusConfirmed],
		Cancelled: counts[StatusCancelled],
		Completed: counts[StatusCompleted],
		NoShow:    counts[StatusNoShow],
	}
	st.Total = st.Pending + st.Confirmed + st.Cancelled + st.Completed + st.NoShow
	return st, nil
}

// Delete removes an appointment permanently, freeing its slot if it was live.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return wrapStoreErr(err, "load appointment")
	}
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return wrapStoreErr(err, "delete appointment")
	}

	s.log.Info().Str("appointment_id", id.String()).Str("slot", appt.SlotKey()).Msg("appointment deleted")
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{
		"status": appt.Status,
		"slot":   appt.SlotKey(),
	})
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("appointment_id", appointmentID.String()).Msg("failed to insert event log")
	}
}

func (s *Service) notifyNewBooking(ctx context.Context, appt Appointment) bool {
	if s.notifier == nil {
		return false
	}
	queued, err := s.notifier.NotifyAdminOfNewBooking(ctx, appt)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("admin notification failed")
		return false
	}
	return queued
}

func (s *Service) notifyStatusChange(ctx context.Context, appt Appointment, previous Status) bool {
	if s.notifier == nil {
		return false
	}
	queued, err := s.notifier.NotifyStatusChange(ctx, appt, previous)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("status notification failed")
		return false
	}
	return queued
}

func wrapStoreErr(err error, op string) error {
	if _, ok := errs.As(err); ok {
		return err
	}
	if errors.Is(err, ErrAppointmentNotFound) {
		return errs.NotFound("appointment", err)
	}
	if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrSlotNotOffered) {
		return errs.SlotUnavailable(slotGoneMessage, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
