package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// LogDispatcher writes notifications to the log instead of sending them.
// Used when SMTP is not configured.
type LogDispatcher struct {
	log zerolog.Logger
}

var _ appointment.Notifier = LogDispatcher{}

func NewLogDispatcher(log zerolog.Logger) LogDispatcher {
	return LogDispatcher{log: log.With().Str("component", "notify").Logger()}
}

func (d LogDispatcher) NotifyAdminOfNewBooking(ctx context.Context, appt appointment.Appointment) (bool, error) {
	d.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("slot", appt.SlotKey()).
		Str("patient", appt.PatientName).
		Msg("new booking notification")
	return true, nil
}

func (d LogDispatcher) NotifyStatusChange(ctx context.Context, appt appointment.Appointment, previous appointment.Status) (bool, error) {
	d.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("from", string(previous)).
		Str("to", string(appt.Status)).
		Msg("status change notification")
	return true, nil
}
