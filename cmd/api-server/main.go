package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/memstore"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slots"
)

var version = "dev"

// store is the pair of repositories the services run on.
type store struct {
	rules        availability.Repository
	appointments appointment.Repository
	health       api.Pinger
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("timezone", cfg.Timezone.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init error")
	}
	defer st.close()

	locker, redisPing, closeRedis, err := openLocker(rootCtx, cfg, log)
	if err != nil {
		st.close()
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer closeRedis()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "clinic")

	var dispatcher appointment.Notifier = notify.NewLogDispatcher(log)
	if cfg.SMTPHost != "" {
		dispatcher = notify.NewSMTPDispatcher(notify.SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			Username:      cfg.SMTPUsername,
			Password:      cfg.SMTPPassword,
			From:          cfg.SMTPFrom,
			AdminEmail:    cfg.AdminEmail,
			PublicBaseURL: cfg.PublicBaseURL,
		}, log)
	}
	notifier := notify.NewAsync(dispatcher, cfg.NotifyTimeout, m, log)

	limits := availability.Limits{MinSlotMinutes: cfg.SlotMinMinutes, MaxSlotMinutes: cfg.SlotMaxMinutes}
	rules := availability.NewService(st.rules, st.appointments, limits, log)
	resolver := slots.NewResolver(rules, st.appointments)
	appointments := appointment.NewService(st.appointments, resolver, locker, notifier, m, log,
		appointment.Options{Location: cfg.Timezone})

	handler := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Availability: rules,
		Resolver:     resolver,
		Auth:         auth.New(auth.Config{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}),
		Health:       api.NewHealthHandler(st.health, redisPing, cfg.Env, version),
		Metrics:      m,
		Gatherer:     reg,
		Log:          log,
		BookingLimit: api.RateLimiterConfig{Rate: rate.Limit(cfg.BookingRateLimit), Burst: cfg.BookingRateBurst},
		HorizonDays:  cfg.HorizonDays,
		Today:        appointments.Today,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending notifications abandoned")
	}
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		mem := memstore.New()
		return store{rules: mem.Rules(), appointments: mem.Appointments(), close: func() {}}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	if err != nil {
		return store{}, err
	}
	if err := db.Migrate(pgCtx, pool); err != nil {
		pool.Close()
		return store{}, err
	}
	log.Info().Msg("connected to Postgres")

	return store{
		rules:        availability.NewPgRepository(pool),
		appointments: appointment.NewPgRepository(pool),
		health:       pool,
		close:        pool.Close,
	}, nil
}

// openLocker prefers Redis; without REDIS_ADDR locks stay in process, which
// is only correct for a single replica.
func openLocker(ctx context.Context, cfg config.Config, log zerolog.Logger) (redisclient.Locker, api.Pinger, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR not set, using in-process slot locks")
		return redisclient.NewLocalLocker(), nil, func() {}, nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		TLS:          cfg.RedisTLS,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdle,
		DialTimeout:  cfg.RedisDialTimeout,
		IOTimeout:    cfg.RedisIOTimeout,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().
		Str("addr", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Bool("tls", cfg.RedisTLS).
		Int("pool_size", cfg.RedisPoolSize).
		Msg("connected to Redis")

	ping := api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	closeFn := func() {
		if err := rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}
	return redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL), ping, closeFn, nil
}
