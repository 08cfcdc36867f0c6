package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/memstore"
	"github.com/hackgods/clinic-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slots"
)

// Monday 2026-10-19; tomorrow is Tuesday and 2026-10-21 is a Wednesday.
var clinicNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memstore.New()
	appts := store.Appointments()
	rules := availability.NewService(store.Rules(), appts, availability.DefaultLimits(), zerolog.Nop())
	resolver := slots.NewResolver(rules, appts)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	svc := appointment.NewService(appts, resolver, redisclient.NewLocalLocker(), nil, m, zerolog.Nop(),
		appointment.Options{Now: func() time.Time { return clinicNow }})

	authn := auth.New(auth.Config{Secret: []byte("secret"), Issuer: "test"})
	token, err := authn.Sign("doctor", []string{auth.RoleAdmin}, time.Now())
	require.NoError(t, err)

	h := NewRouter(RouterConfig{
		Appointments: svc,
		Availability: rules,
		Resolver:     resolver,
		Auth:         authn,
		Health:       NewHealthHandler(nil, nil, "test", "dev"),
		Metrics:      m,
		Gatherer:     reg,
		Log:          zerolog.Nop(),
		BookingLimit: RateLimiterConfig{Rate: 1000, Burst: 1000},
		HorizonDays:  30,
		Today:        svc.Today,
	})
	return &testServer{handler: h, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) seedWeekdays(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/availability", map[string]any{
		"days":          []int{0, 1, 2, 3, 4},
		"start_time":    "09:00",
		"end_time":      "18:00",
		"slot_duration": 30,
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func booking(date, tm string) map[string]any {
	return map[string]any{
		"patient_name":     "Asha Rao",
		"patient_email":    "asha@example.com",
		"patient_phone":    "9876543210",
		"appointment_date": date,
		"appointment_time": tm,
		"reason":           "initial_consultation",
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/availability", nil, false).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/slots/detailed", nil, false).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/appointments", nil, false).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/availability", nil, true).Code)
}

func TestPublicRoutesIgnoreStaleTokens(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	send := func(method, path string, body any, header string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/appointments", booking("2026-10-21", "10:00"), "Bearer expired.or.stale")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decodeBody[BookingResponse](t, rec)

	rec = send(http.MethodGet, "/appointments/"+booked.Appointment.ID.String()+"/confirm", nil, "Basic Zm9vOmJhcg==")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decodeBody[StatusResponse](t, rec).Result)

	rec = send(http.MethodGet, "/available-slots?date=2026-10-21", nil, "Bearer expired.or.stale")
	assert.Equal(t, http.StatusOK, rec.Code)

	// staff routes still refuse the same header
	rec = send(http.MethodGet, "/appointments", nil, "Bearer expired.or.stale")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired token", decodeBody[ErrorResponse](t, rec).Details)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	rec := s.do(t, http.MethodGet, "/available-slots?date=2026-10-21", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	free := decodeBody[AvailableSlotsResponse](t, rec)
	assert.Equal(t, 18, free.TotalAvailable)
	assert.Equal(t, "Wednesday", free.DayName)

	rec = s.do(t, http.MethodPost, "/appointments", booking("2026-10-21", "09:00"), false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decodeBody[BookingResponse](t, rec)
	assert.Equal(t, appointment.StatusPending, booked.Appointment.Status)

	rec = s.do(t, http.MethodPost, "/appointments", booking("2026-10-21", "09:00"), false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decodeBody[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/slots/detailed?date=2026-10-21", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[slots.Summary](t, rec)
	assert.Equal(t, 18, sum.Total)
	assert.Equal(t, 1, sum.Booked)
	assert.Equal(t, 17, sum.Available)

	confirmPath := "/appointments/" + booked.Appointment.ID.String() + "/confirm"
	rec = s.do(t, http.MethodGet, confirmPath, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decodeBody[StatusResponse](t, rec).Result)

	rec = s.do(t, http.MethodPost, confirmPath, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_processed", decodeBody[StatusResponse](t, rec).Result)

	rec = s.do(t, http.MethodGet, "/appointments/"+booked.Appointment.ID.String()+"/cancel", nil, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments/"+booked.Appointment.ID.String()+"/status", map[string]string{"status": "cancelled"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/available-slots?date=2026-10-21", nil, false)
	assert.Equal(t, 18, decodeBody[AvailableSlotsResponse](t, rec).TotalAvailable)

	rec = s.do(t, http.MethodGet, "/appointments/stats", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.Stats{Total: 1, Cancelled: 1}, decodeBody[appointment.Stats](t, rec))
}

func TestAvailableSlotsDefaultsToTomorrow(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	rec := s.do(t, http.MethodGet, "/available-slots", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[AvailableSlotsResponse](t, rec)
	assert.Equal(t, calendar.Date{Year: 2026, Month: 10, Day: 20}, resp.Date)
}

func TestNextAvailableDate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/available-slots/next", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[NextAvailableResponse](t, rec).Found)

	rec = s.do(t, http.MethodPost, "/availability", map[string]any{
		"date": "2026-10-24", "start_time": "10:00", "end_time": "12:00",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/available-slots/next", nil, false)
	resp := decodeBody[NextAvailableResponse](t, rec)
	require.True(t, resp.Found)
	assert.Equal(t, calendar.Date{Year: 2026, Month: 10, Day: 24}, *resp.Date)
}

func TestAvailabilityErrors(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	rec := s.do(t, http.MethodPost, "/availability", map[string]any{
		"day_of_week": 0, "start_time": "10:00", "end_time": "11:00",
	}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "availability_conflict", body.Error)
	assert.Equal(t, "Monday", body.Meta["day"])

	rec = s.do(t, http.MethodPost, "/availability", map[string]any{
		"day_of_week": 5, "start_time": "12:00", "end_time": "09:00",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "end_time", decodeBody[ErrorResponse](t, rec).Field)

	rec = s.do(t, http.MethodPost, "/availability", map[string]any{
		"day_of_week": 9, "start_time": "09:00", "end_time": "12:00",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "day_of_week", decodeBody[ErrorResponse](t, rec).Field)
}

func TestDatedRuleLockedOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/availability", map[string]any{
		"date": "2026-10-24", "start_time": "10:00", "end_time": "12:00",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	rule := decodeBody[AvailabilityResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/appointments", booking("2026-10-24", "10:30"), false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/availability/"+rule.ID.String(), nil, true)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "availability_locked", decodeBody[ErrorResponse](t, rec).Error)
}

func TestBookingValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	rec := s.do(t, http.MethodPost, "/appointments", booking("2026-10-12", "09:00"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "appointment_date", decodeBody[ErrorResponse](t, rec).Field)

	rec = s.do(t, http.MethodPost, "/appointments", booking("21/10/2026", "09:00"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := booking("2026-10-21", "09:00")
	bad["patient_phone"] = "123"
	rec = s.do(t, http.MethodPost, "/appointments", bad, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "patient_phone", decodeBody[ErrorResponse](t, rec).Field)

	rec = s.do(t, http.MethodGet, "/appointments/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingTimeWithSecondsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	rec := s.do(t, http.MethodPost, "/appointments", booking("2026-10-21", "09:00:45"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "appointment_time", decodeBody[ErrorResponse](t, rec).Field)

	rec = s.do(t, http.MethodGet, "/slots/detailed?date=2026-10-21", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[slots.Summary](t, rec).Booked)

	rec = s.do(t, http.MethodPost, "/appointments", booking("2026-10-21", "09:00:00"), false)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestListAppointmentsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seedWeekdays(t)

	for _, tm := range []string{"09:00", "09:30", "10:00"} {
		rec := s.do(t, http.MethodPost, "/appointments", booking("2026-10-21", tm), false)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/appointments?limit=2&page=2", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[appointment.Page](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Len(t, page.Appointments, 1)
	assert.True(t, page.HasPrevious)

	rec = s.do(t, http.MethodGet, "/appointments?status=bogus", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingRateLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	h := rl.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	call := func() int {
		req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/ready", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadinessResponse](t, rec)
	assert.Equal(t, "memory", ready.Dependencies["storage"])

	rec = s.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}
