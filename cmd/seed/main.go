package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/errs"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/memstore"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slots"
)

var weekdays = []calendar.Weekday{
	calendar.Monday, calendar.Tuesday, calendar.Wednesday, calendar.Thursday, calendar.Friday,
}

var reasons = []appointment.Reason{
	appointment.ReasonInitialConsultation,
	appointment.ReasonFollowUp,
	appointment.ReasonSecondOpinion,
	appointment.ReasonTreatmentPlanning,
	appointment.ReasonPostSurgery,
	appointment.ReasonEmergency,
	appointment.ReasonOther,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("storage", cfg.StorageDriver).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var (
		rulesRepo availability.Repository
		apptRepo  appointment.Repository
	)
	if cfg.StorageDriver == config.StorageMemory {
		// Dry run: exercises the same services without touching a database.
		mem := memstore.New()
		rulesRepo, apptRepo = mem.Rules(), mem.Appointments()
	} else {
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		rulesRepo, apptRepo = availability.NewPgRepository(pool), appointment.NewPgRepository(pool)
	}

	rules := availability.NewService(rulesRepo, apptRepo,
		availability.Limits{MinSlotMinutes: cfg.SlotMinMinutes, MaxSlotMinutes: cfg.SlotMaxMinutes}, log)
	resolver := slots.NewResolver(rules, apptRepo)
	appts := appointment.NewService(apptRepo, resolver, redisclient.NewLocalLocker(),
		notify.NewLogDispatcher(zerolog.Nop()), nil, log, appointment.Options{Location: cfg.Timezone})

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedWorkingHours(ctx, rules, log); err != nil {
		log.Fatal().Err(err).Msg("seed working hours")
	}

	count := 40
	if v := os.Getenv("SEED_APPOINTMENTS"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &count); err != nil {
			log.Fatal().Str("SEED_APPOINTMENTS", v).Msg("invalid count")
		}
	}
	if err := seedAppointments(ctx, appts, resolver, count, log); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}

	log.Info().Msg("seed complete")
}

// seedWorkingHours adds a morning and an afternoon session on weekdays.
// Rules that already exist are left alone.
func seedWorkingHours(ctx context.Context, rules *availability.Service, log zerolog.Logger) error {
	sessions := []struct{ start, end calendar.TimeOfDay }{
		{calendar.NewTimeOfDay(9, 0), calendar.NewTimeOfDay(13, 0)},
		{calendar.NewTimeOfDay(14, 0), calendar.NewTimeOfDay(18, 0)},
	}
	for _, s := range sessions {
		created, err := rules.AddRecurringRules(ctx, weekdays, s.start, s.end, 30)
		if errors.Is(err, errs.ErrConflict) {
			log.Info().Str("start", s.start.String()).Str("end", s.end.String()).Msg("working hours already present")
			continue
		}
		if err != nil {
			return err
		}
		log.Info().Int("rules", len(created)).Str("start", s.start.String()).Msg("working hours seeded")
	}
	return nil
}

func seedAppointments(ctx context.Context, appts *appointment.Service, resolver *slots.Resolver, count int, log zerolog.Logger) error {
	log.Info().Int("count", count).Msg("seeding appointments")

	booked := 0
	date := appts.Today().AddDays(1)
	for day := 0; day < 14 && booked < count; day++ {
		free, err := resolver.ResolveAvailableSlots(ctx, date)
		if err != nil {
			return err
		}
		gofakeit.ShuffleAnySlice(free)

		// Leave roughly half of each day open.
		for _, slot := range free[:len(free)/2] {
			if booked == count {
				break
			}
			_, err := appts.BookSlot(ctx, fakeRequest(date, slot.Time))
			if errors.Is(err, errs.ErrSlotUnavailable) {
				continue
			}
			if err != nil {
				return err
			}
			booked++
		}
		date = date.AddDays(1)
	}

	log.Info().Int("booked", booked).Msg("appointments seeded")
	return nil
}

func fakeRequest(date calendar.Date, t calendar.TimeOfDay) appointment.BookingRequest {
	notes := ""
	if gofakeit.Bool() {
		notes = gofakeit.Phrase()
	}
	return appointment.BookingRequest{
		PatientName:  gofakeit.Name(),
		PatientEmail: gofakeit.Email(),
		PatientPhone: fmt.Sprintf("%d%s", gofakeit.Number(6, 9), gofakeit.Numerify("#########")),
		Date:         date,
		Time:         t,
		Reason:       reasons[gofakeit.Number(0, len(reasons)-1)],
		Notes:        notes,
	}
}
