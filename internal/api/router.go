package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/slots"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	Resolver     *slots.Resolver
	Auth         *auth.Authenticator
	Health       *HealthHandler
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Log          zerolog.Logger
	BookingLimit RateLimiterConfig
	HorizonDays  int
	// Today is the clinic's current date; slot queries default to the day after.
	Today func() calendar.Date
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log, cfg.Metrics))
	r.Use(cfg.Auth.Middleware)

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Public endpoints
	r.Get("/available-slots", availableSlotsHandler(cfg.Resolver, cfg.Today, cfg.Metrics))
	r.Get("/available-slots/next", nextAvailableDateHandler(cfg.Resolver, cfg.Today, cfg.HorizonDays))
	r.With(NewRateLimiter(cfg.BookingLimit).RateLimit).
		Post("/appointments", createAppointmentHandler(cfg.Appointments))
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r.Method(method, "/appointments/{id}/confirm", linkActionHandler(cfg.Appointments, appointment.StatusConfirmed))
		r.Method(method, "/appointments/{id}/cancel", linkActionHandler(cfg.Appointments, appointment.StatusCancelled))
	}

	// Staff endpoints
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(auth.ContextRoles{}))

		r.Get("/slots/detailed", detailedSlotsHandler(cfg.Resolver, cfg.Today, cfg.Metrics))

		r.Get("/availability", listAvailabilityHandler(cfg.Availability))
		r.Post("/availability", createAvailabilityHandler(cfg.Availability))
		r.Get("/availability/{id}", getAvailabilityHandler(cfg.Availability))
		r.Put("/availability/{id}", updateAvailabilityHandler(cfg.Availability))
		r.Delete("/availability/{id}", deleteAvailabilityHandler(cfg.Availability))

		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/stats", appointmentStatsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Put("/appointments/{id}", updateAppointmentHandler(cfg.Appointments))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/status", setStatusHandler(cfg.Appointments))
	})

	return r
}
