// Package notify delivers booking and status emails. Delivery never blocks
// or fails the request that triggered it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/metrics"
)

const (
	kindNewBooking   = "new_booking"
	kindStatusChange = "status_change"
)

// Async runs each notification on its own goroutine with a bounded timeout.
// A queued notification reports true immediately; its outcome is only logged.
type Async struct {
	next    appointment.Notifier
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ appointment.Notifier = (*Async)(nil)

func NewAsync(next appointment.Notifier, timeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{
		next:    next,
		timeout: timeout,
		metrics: m,
		log:     log.With().Str("component", "notify").Logger(),
	}
}

func (a *Async) NotifyAdminOfNewBooking(ctx context.Context, appt appointment.Appointment) (bool, error) {
	return a.dispatch(kindNewBooking, appt, func(ctx context.Context) (bool, error) {
		return a.next.NotifyAdminOfNewBooking(ctx, appt)
	}), nil
}

func (a *Async) NotifyStatusChange(ctx context.Context, appt appointment.Appointment, previous appointment.Status) (bool, error) {
	return a.dispatch(kindStatusChange, appt, func(ctx context.Context) (bool, error) {
		return a.next.NotifyStatusChange(ctx, appt, previous)
	}), nil
}

func (a *Async) dispatch(kind string, appt appointment.Appointment, send func(ctx context.Context) (bool, error)) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		sent, err := send(ctx)
		switch {
		case err != nil:
			a.metrics.ObserveNotification(kind, metrics.NotificationFailed)
			a.log.Error().Err(err).Str("kind", kind).Str("appointment_id", appt.ID.String()).Msg("notification failed")
		case !sent:
			a.metrics.ObserveNotification(kind, metrics.NotificationSkipped)
		default:
			a.metrics.ObserveNotification(kind, metrics.NotificationSent)
		}
	}()
	return true
}

// Close stops accepting notifications and waits for in-flight ones until ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
