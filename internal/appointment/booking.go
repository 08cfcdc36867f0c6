package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-booking/internal/errs"
	"github.com/hackgods/clinic-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

const slotGoneMessage = "this time slot is no longer available, please select another time"

// BookSlot reserves a free slot for a patient. The appointment starts pending
// and the admin is notified without waiting for delivery.
//
// Concurrent requests for the same slot are serialized by a per slot lock;
// the slot is re-checked inside the lock, and the active slot unique index
// rejects anything that slips past it.
func (s *Service) BookSlot(ctx context.Context, req BookingRequest) (BookingResult, error) {
	start := time.Now()

	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientEmail = strings.ToLower(strings.TrimSpace(req.PatientEmail))
	req.PatientPhone = NormalizePhone(req.PatientPhone)
	req.Notes = strings.TrimSpace(req.Notes)

	if err := s.checkRequest(req); err != nil {
		s.metrics.ObserveBooking(metrics.BookingInvalid, 0)
		return BookingResult{}, err
	}

	var created *Appointment

	err := s.locker.WithSlotLock(ctx, SlotKey(req.Date, req.Time), func(lockCtx context.Context) error {
		// Inside the critical section re-check the slot is generated and free
		_, free, err := s.slots.FindFreeSlot(lockCtx, req.Date, req.Time)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if !free {
			return errs.SlotUnavailable(slotGoneMessage, nil)
		}

		appt := &Appointment{
			PatientName:  req.PatientName,
			PatientEmail: req.PatientEmail,
			PatientPhone: req.PatientPhone,
			Date:         req.Date,
			Time:         req.Time,
			Reason:       req.Reason,
			Status:       StatusPending,
			Notes:        req.Notes,
		}
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return wrapStoreErr(err, "create appointment")
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = errs.SlotUnavailable("this time slot is being booked by someone else, please select another time", err)
		}
		if errors.Is(err, errs.ErrSlotUnavailable) {
			s.metrics.ObserveBooking(metrics.BookingUnavailable, 0)
			s.log.Info().Str("slot", SlotKey(req.Date, req.Time)).Msg("booking rejected, slot unavailable")
		} else {
			s.metrics.ObserveBooking(metrics.BookingError, 0)
			s.log.Error().Err(err).Str("slot", SlotKey(req.Date, req.Time)).Msg("booking failed")
		}
		return BookingResult{}, err
	}

	s.metrics.ObserveBooking(metrics.BookingCreated, time.Since(start))
	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot", created.SlotKey()).
		Msg("appointment booked")

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"appointment_date": created.Date.String(),
		"appointment_time": created.Time.String(),
		"reason":           created.Reason,
	})

	return BookingResult{
		Appointment:        *created,
		NotificationQueued: s.notifyNewBooking(ctx, *created),
	}, nil
}

func (s *Service) checkRequest(req BookingRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return toValidationError(err)
	}
	if req.Date.IsZero() {
		return errs.Validation("appointment_date", "this field is required")
	}
	if !req.Time.Valid() {
		return errs.Validation("appointment_time", "enter a valid time of day")
	}
	if req.Date.Before(s.Today()) {
		return errs.Validation("appointment_date", "appointment date cannot be in the past")
	}
	return nil
}
