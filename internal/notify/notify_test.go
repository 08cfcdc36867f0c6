package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/metrics"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m...)
	return nil
}

func sampleAppointment() appointment.Appointment {
	return appointment.Appointment{
		ID:           uuid.MustParse("6f1c2d1e-8a2b-4c59-9d54-0a8f1e4b7c11"),
		PatientName:  "Asha Rao",
		PatientEmail: "asha@example.com",
		PatientPhone: "9876543210",
		Date:         calendar.Date{Year: 2026, Month: 10, Day: 21},
		Time:         calendar.NewTimeOfDay(9, 30),
		Reason:       appointment.ReasonPostSurgery,
		Status:       appointment.StatusPending,
	}
}

func TestAdminMailCarriesActionLinks(t *testing.T) {
	snd := &captureSender{}
	d := &SMTPDispatcher{
		cfg:    SMTPConfig{From: "clinic@example.com", AdminEmail: "doctor@example.com", PublicBaseURL: "https://clinic.example.com/"},
		sender: snd,
		log:    zerolog.Nop(),
	}

	sent, err := d.NotifyAdminOfNewBooking(context.Background(), sampleAppointment())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, snd.msgs, 1)

	msg := snd.msgs[0]
	assert.Equal(t, []string{"doctor@example.com"}, msg.GetHeader("To"))

	body, err := render(adminBookingTmpl, mailData{
		Appointment: sampleAppointment(),
		ConfirmURL:  d.actionURL(sampleAppointment(), "confirm"),
		CancelURL:   d.actionURL(sampleAppointment(), "cancel"),
	})
	require.NoError(t, err)
	assert.Contains(t, body, "https://clinic.example.com/appointments/6f1c2d1e-8a2b-4c59-9d54-0a8f1e4b7c11/confirm")
	assert.Contains(t, body, "Time:    09:30")
}

func TestAdminMailSkippedWithoutAddress(t *testing.T) {
	snd := &captureSender{}
	d := &SMTPDispatcher{sender: snd, log: zerolog.Nop()}

	sent, err := d.NotifyAdminOfNewBooking(context.Background(), sampleAppointment())
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, snd.msgs)
}

func TestStatusMailGoesToPatient(t *testing.T) {
	snd := &captureSender{}
	d := &SMTPDispatcher{cfg: SMTPConfig{From: "clinic@example.com"}, sender: snd, log: zerolog.Nop()}

	appt := sampleAppointment()
	appt.Status = appointment.StatusNoShow
	sent, err := d.NotifyStatusChange(context.Background(), appt, appointment.StatusConfirmed)
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, snd.msgs, 1)
	assert.Equal(t, []string{"asha@example.com"}, snd.msgs[0].GetHeader("To"))
	assert.Equal(t, []string{"Your appointment on 2026-10-21 is no show"}, snd.msgs[0].GetHeader("Subject"))
}

type flakyNotifier struct {
	err error
}

func (f flakyNotifier) NotifyAdminOfNewBooking(ctx context.Context, appt appointment.Appointment) (bool, error) {
	return f.err == nil, f.err
}

func (f flakyNotifier) NotifyStatusChange(ctx context.Context, appt appointment.Appointment, previous appointment.Status) (bool, error) {
	return f.err == nil, f.err
}

func TestAsyncCountsOutcomes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test")

	ok := NewAsync(flakyNotifier{}, time.Second, m, zerolog.Nop())
	queued, err := ok.NotifyAdminOfNewBooking(context.Background(), sampleAppointment())
	require.NoError(t, err)
	assert.True(t, queued)
	require.NoError(t, ok.Close(context.Background()))

	failing := NewAsync(flakyNotifier{err: errors.New("smtp down")}, time.Second, m, zerolog.Nop())
	queued, err = failing.NotifyStatusChange(context.Background(), sampleAppointment(), appointment.StatusPending)
	require.NoError(t, err, "delivery errors never reach the caller")
	assert.True(t, queued)
	require.NoError(t, failing.Close(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(kindNewBooking, metrics.NotificationSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(kindStatusChange, metrics.NotificationFailed)))
}

func TestAsyncRefusesAfterClose(t *testing.T) {
	a := NewAsync(flakyNotifier{}, time.Second, nil, zerolog.Nop())
	require.NoError(t, a.Close(context.Background()))

	queued, err := a.NotifyAdminOfNewBooking(context.Background(), sampleAppointment())
	require.NoError(t, err)
	assert.False(t, queued)
}
