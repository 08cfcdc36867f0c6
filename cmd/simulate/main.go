package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	Date         string // empty means the next date with free slots
	AdminToken   string
}

// Target is the day under load and the slot times that were free when the
// run started. Workers deliberately collide on the same times.
type Target struct {
	Date         string
	Times        []string
	InitialTaken int

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (t *Target) AddAppointment(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appointments = append(t.appointments, id)
}

func (t *Target) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.appointments) == 0 {
		return uuid.Nil, false
	}
	return t.appointments[rng.Intn(len(t.appointments))], true
}

func (t *Target) Booked() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.appointments)
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return sum / time.Duration(len(latencies)),
		latencies[0],
		latencies[len(latencies)-1],
		percentile(latencies, 50),
		percentile(latencies, 95)
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Metrics struct {
	Booking     OperationMetrics
	Confirm     OperationMetrics
	ReadByID    OperationMetrics
	List        OperationMetrics
	PublicSlots OperationMetrics
}

type Simulator struct {
	config  SimConfig
	target  *Target
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
}

func main() {
	base, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("failed to load base config")
	}
	log := logger.New(base.Env, base.LogLevel)

	cfg, err := loadConfig(base)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	target, err := sim.loadTarget(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load target date")
	}
	sim.target = target
	log.Info().Str("date", target.Date).Int("free_slots", len(target.Times)).Msg("target loaded")

	gofakeit.Seed(time.Now().UnixNano())

	sim.Run()
	sim.PrintReport()

	if err := sim.Verify(context.Background()); err != nil {
		log.Error().Err(err).Msg("verification failed")
		os.Exit(1)
	}
	log.Info().Msg("verification passed: one booking per slot")
}

func loadConfig(base config.Config) (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Date:         os.Getenv("SIM_DATE"),
	}

	if cfg.Workers <= 0 {
		return cfg, errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, errors.New("SIM_DURATION must be > 0")
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	// Staff reads need an admin token signed with the server's secret.
	authn := auth.New(auth.Config{Secret: []byte(base.JWTSecret), Issuer: base.JWTIssuer, TTL: time.Hour})
	token, err := authn.Sign("simulator", []string{auth.RoleAdmin}, time.Now())
	if err != nil {
		return cfg, fmt.Errorf("sign admin token: %w", err)
	}
	cfg.AdminToken = token

	return cfg, nil
}

func (s *Simulator) loadTarget(ctx context.Context) (*Target, error) {
	date := s.config.Date
	if date == "" {
		var next struct {
			Found bool   `json:"found"`
			Date  string `json:"next_available_date"`
		}
		if err := s.getJSON(ctx, "/available-slots/next", false, &next); err != nil {
			return nil, err
		}
		if !next.Found {
			return nil, errors.New("no date with free slots; run the seed first")
		}
		date = next.Date
	}

	var free struct {
		Slots []struct {
			Time string `json:"time"`
		} `json:"slots"`
	}
	if err := s.getJSON(ctx, "/available-slots?date="+date, false, &free); err != nil {
		return nil, err
	}
	if len(free.Slots) == 0 {
		return nil, fmt.Errorf("no free slots on %s", date)
	}

	taken, err := s.bookedOn(ctx, date)
	if err != nil {
		return nil, err
	}

	t := &Target{Date: date, InitialTaken: taken}
	for _, sl := range free.Slots {
		t.Times = append(t.Times, sl.Time)
	}
	return t, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doList(ctx, rng)
			case 2:
				s.doPublicSlots(ctx)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	body, _ := json.Marshal(map[string]string{
		"patient_name":     gofakeit.Name(),
		"patient_email":    gofakeit.Email(),
		"patient_phone":    "9" + gofakeit.Numerify("#########"),
		"appointment_date": s.target.Date,
		"appointment_time": s.target.Times[rng.Intn(len(s.target.Times))],
		"reason":           "follow_up",
	})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", false, bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			Appointment struct {
				ID uuid.UUID `json:"id"`
			} `json:"appointment"`
		}
		if json.NewDecoder(resp.Body).Decode(&created) == nil && created.Appointment.ID != uuid.Nil {
			s.target.AddAppointment(created.Appointment.ID)
		}
		s.metrics.Booking.Record(latency, true, false)
	case http.StatusConflict, http.StatusTooManyRequests:
		s.metrics.Booking.Record(latency, false, true)
	default:
		s.metrics.Booking.Record(latency, false, false)
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.target.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments/"+id.String()+"/confirm", false, nil)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Confirm.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	s.metrics.Confirm.Record(latency, resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.target.RandomAppointment(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, &s.metrics.ReadByID, "/appointments/"+id.String(), true)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	path := fmt.Sprintf("/appointments?page=%d&limit=20", rng.Intn(3)+1)
	if rng.Intn(2) == 0 {
		path += "&status=pending"
	}
	s.timedGet(ctx, &s.metrics.List, path, true)
}

func (s *Simulator) doPublicSlots(ctx context.Context) {
	s.timedGet(ctx, &s.metrics.PublicSlots, "/available-slots?date="+s.target.Date, false)
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path string, admin bool) {
	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet, path, admin, nil)
	latency := time.Since(start)
	if err != nil {
		om.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	om.Record(latency, resp.StatusCode == http.StatusOK, false)
}

// Verify checks that the slots consumed on the target date match the
// bookings the API acknowledged. A double booking shows up as more 201s
// than newly booked slots.
func (s *Simulator) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	taken, err := s.bookedOn(ctx, s.target.Date)
	if err != nil {
		return err
	}
	acked := s.target.Booked()
	if got := taken - s.target.InitialTaken; got != acked {
		return fmt.Errorf("date %s: %d slots newly booked, %d bookings acknowledged", s.target.Date, got, acked)
	}
	if acked > len(s.target.Times) {
		return fmt.Errorf("date %s: %d bookings for %d free slots", s.target.Date, acked, len(s.target.Times))
	}
	return nil
}

func (s *Simulator) bookedOn(ctx context.Context, date string) (int, error) {
	var sum struct {
		Booked int `json:"booked_slots"`
	}
	if err := s.getJSON(ctx, "/slots/detailed?date="+date, true, &sum); err != nil {
		return 0, err
	}
	return sum.Booked, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, admin bool, out any) error {
	resp, err := s.do(ctx, http.MethodGet, path, admin, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) do(ctx context.Context, method, path string, admin bool, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.config.AdminToken)
	}
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Date: %s (%d free slots at start)\n", s.target.Date, len(s.target.Times))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List", &s.metrics.List)
	printOperationReport("Public slots", &s.metrics.PublicSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, min, max, p50, p95 := om.Stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
