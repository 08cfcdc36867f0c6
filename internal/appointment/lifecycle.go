package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/errs"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ConfirmFromLink confirms a pending appointment from the patient's email link.
func (s *Service) ConfirmFromLink(ctx context.Context, id uuid.UUID) (Outcome, error) {
	return s.Transition(ctx, id, StatusConfirmed, TriggerLink)
}

// CancelFromLink cancels a pending appointment from the patient's email link.
func (s *Service) CancelFromLink(ctx context.Context, id uuid.UUID) (Outcome, error) {
	return s.Transition(ctx, id, StatusCancelled, TriggerLink)
}

// Transition moves an appointment to status to. Asking for the status the
// appointment already has is not an error; the outcome reports it and
// nothing is sent. Link triggers only act on pending appointments.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status, trigger Trigger) (Outcome, error) {
	if !to.Valid() {
		return Outcome{}, errs.Validation("status", fmt.Sprintf("unknown status %q", to))
	}
	if trigger == TriggerLink && to != StatusConfirmed && to != StatusCancelled {
		return Outcome{}, errs.Validation("status", "links can only confirm or cancel")
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return Outcome{}, wrapStoreErr(err, "load appointment")
	}

	if appt.Status == to {
		return Outcome{Appointment: *appt, Previous: appt.Status, AlreadyInState: true}, nil
	}
	if err := checkTransition(appt.Status, to, trigger); err != nil {
		return Outcome{}, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	if errors.Is(err, ErrAppointmentNotFound) {
		// status moved underneath us; report against the fresh state
		return s.afterLostRace(ctx, id, to)
	}
	if err != nil {
		return Outcome{}, wrapStoreErr(err, "update appointment status")
	}

	return s.applied(ctx, *updated, appt.Status, trigger), nil
}

func checkTransition(from, to Status, trigger Trigger) error {
	if trigger == TriggerLink && from != StatusPending {
		return errs.InvalidTransition(string(from), string(to))
	}
	if !CanTransition(from, to) {
		return errs.InvalidTransition(string(from), string(to))
	}
	return nil
}

func (s *Service) afterLostRace(ctx context.Context, id uuid.UUID, to Status) (Outcome, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return Outcome{}, wrapStoreErr(err, "reload appointment")
	}
	if current.Status == to {
		return Outcome{Appointment: *current, Previous: current.Status, AlreadyInState: true}, nil
	}
	return Outcome{}, errs.InvalidTransition(string(current.Status), string(to))
}

func (s *Service) applied(ctx context.Context, appt Appointment, previous Status, trigger Trigger) Outcome {
	s.metrics.ObserveTransition(string(previous), string(appt.Status), string(trigger))
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("from", string(previous)).
		Str("to", string(appt.Status)).
		Str("trigger", string(trigger)).
		Msg("appointment status changed")

	s.logEvent(ctx, appt.ID, EventAppointmentStatusChanged, map[string]any{
		"from":    previous,
		"to":      appt.Status,
		"trigger": trigger,
	})

	return Outcome{
		Appointment:        appt,
		Previous:           previous,
		NotificationQueued: s.notifyStatusChange(ctx, appt, previous),
	}
}

// Update applies staff edits. Field edits are refused once the appointment is
// terminal; moving to another slot requires that slot to be free. A status in
// the patch follows the transition table and is written with the edits.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (Outcome, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return Outcome{}, wrapStoreErr(err, "load appointment")
	}

	if p.editsFields() && current.Status.IsTerminal() {
		return Outcome{}, errs.Validation("status", fmt.Sprintf("appointment is %s and can no longer be edited", current.Status))
	}

	next := *current
	applyPatch(&next, p)

	if p.Status != nil && *p.Status != current.Status {
		if !p.Status.Valid() {
			return Outcome{}, errs.Validation("status", fmt.Sprintf("unknown status %q", *p.Status))
		}
		if err := checkTransition(current.Status, *p.Status, TriggerStaff); err != nil {
			return Outcome{}, err
		}
	}

	req := BookingRequest{
		PatientName:  next.PatientName,
		PatientEmail: next.PatientEmail,
		PatientPhone: next.PatientPhone,
		Date:         next.Date,
		Time:         next.Time,
		Reason:       next.Reason,
		Notes:        next.Notes,
	}
	if err := s.validate.Struct(req); err != nil {
		return Outcome{}, toValidationError(err)
	}
	if !next.Time.Valid() {
		return Outcome{}, errs.Validation("appointment_time", "enter a valid time of day")
	}

	moved := next.Date != current.Date || next.Time != current.Time
	save := func(ctx context.Context) error {
		if moved && next.Status.IsActive() {
			_, free, err := s.slots.FindFreeSlot(ctx, next.Date, next.Time)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if !free {
				return errs.SlotUnavailable(slotGoneMessage, nil)
			}
		}
		return s.repo.UpdateAppointment(ctx, &next, current.Status)
	}

	if moved && next.Status.IsActive() {
		err = s.locker.WithSlotLock(ctx, next.SlotKey(), save)
	} else {
		err = save(ctx)
	}
	if errors.Is(err, ErrAppointmentNotFound) {
		return Outcome{}, errs.InvalidTransition(string(current.Status), string(next.Status))
	}
	if err != nil {
		return Outcome{}, wrapStoreErr(err, "update appointment")
	}

	s.logEvent(ctx, next.ID, EventAppointmentUpdated, map[string]any{
		"appointment_date": next.Date.String(),
		"appointment_time": next.Time.String(),
		"status":           next.Status,
	})

	if next.Status != current.Status {
		return s.applied(ctx, next, current.Status, TriggerStaff), nil
	}
	return Outcome{Appointment: next, Previous: current.Status}, nil
}

func applyPatch(a *Appointment, p Patch) {
	if p.PatientName != nil {
		a.PatientName = *p.PatientName
	}
	if p.PatientEmail != nil {
		a.PatientEmail = *p.PatientEmail
	}
	if p.PatientPhone != nil {
		a.PatientPhone = NormalizePhone(*p.PatientPhone)
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Reason != nil {
		a.Reason = *p.Reason
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}
