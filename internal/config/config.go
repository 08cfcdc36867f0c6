package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Env              string // dev, prod
	LogLevel         string // zerolog level, default info
	HTTPPort         string // default 8080
	StorageDriver    string // postgres or memory
	PostgresDSN      string // required for postgres
	PostgresMaxConn  int32  // pool size
	RedisAddr        string // host:port, empty means in-process locks
	RedisUsername    string // redis username
	RedisPassword    string // redis password
	RedisDB          int    // logical database, from REDIS_DB or the URL path
	RedisTLS         bool   // rediss:// or REDIS_TLS=true
	RedisPoolSize    int
	RedisMinIdle     int
	RedisDialTimeout time.Duration
	RedisIOTimeout   time.Duration // read and write deadline per command
	LockTTL          time.Duration // how long a Redis slot lock lives
	ShutdownTimeout  time.Duration // graceful shutdown timeout

	JWTSecret string
	JWTIssuer string

	Timezone       *time.Location // clinic local time, decides "today"
	SlotMinMinutes int
	SlotMaxMinutes int
	HorizonDays    int // how far ahead the next available date search looks

	NotifyTimeout time.Duration
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	AdminEmail    string
	PublicBaseURL string

	BookingRateLimit float64 // requests per second per client on POST /appointments
	BookingRateBurst int
}

func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		StorageDriver:    getEnv("STORAGE_DRIVER", StoragePostgres),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		PostgresMaxConn:  int32(getInt("POSTGRES_MAX_CONNS", 10)),
		LockTTL:          getDuration("LOCK_TTL", 5*time.Second),
		RedisPoolSize:    getInt("REDIS_POOL_SIZE", 10),
		RedisMinIdle:     getInt("REDIS_MIN_IDLE_CONNS", 1),
		RedisDialTimeout: getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisIOTimeout:   getDuration("REDIS_IO_TIMEOUT", 2*time.Second),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnv("JWT_ISSUER", "clinic-booking"),

		SlotMinMinutes: getInt("SLOT_MIN_MINUTES", 15),
		SlotMaxMinutes: getInt("SLOT_MAX_MINUTES", 120),
		HorizonDays:    getInt("BOOKING_HORIZON_DAYS", 30),

		NotifyTimeout: getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:      getEnv("SMTP_FROM", "no-reply@clinic.local"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		BookingRateLimit: getFloat("BOOKING_RATE_LIMIT", 1),
		BookingRateBurst: getInt("BOOKING_RATE_BURST", 5),
	}

	tz, err := time.LoadLocation(getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, errors.New("POSTGRES_DSN is required")
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "dev" {
			return Config{}, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = "dev-secret"
	}

	if cfg.SlotMinMinutes <= 0 || cfg.SlotMinMinutes > cfg.SlotMaxMinutes {
		return Config{}, fmt.Errorf("invalid slot bounds %d..%d", cfg.SlotMinMinutes, cfg.SlotMaxMinutes)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL != "" {
		r, err := parseRedisURL(redisURL)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		cfg.RedisAddr = r.addr
		cfg.RedisUsername = r.username
		cfg.RedisPassword = r.password
		cfg.RedisDB = r.db
		cfg.RedisTLS = r.tls
	} else {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		cfg.RedisUsername = getEnv("REDIS_USERNAME", "")
		cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
		cfg.RedisDB = getInt("REDIS_DB", 0)
		cfg.RedisTLS = getEnv("REDIS_TLS", "false") == "true"
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("invalid redis db %d", cfg.RedisDB)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid integer for %s=%q, using default %d\n", key, v, def)
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		fmt.Fprintf(os.Stderr, "invalid number for %s=%q, using default %g\n", key, v, def)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
	}
	return def
}

type redisURL struct {
	addr     string
	username string
	password string
	db       int
	tls      bool
}

// parseRedisURL parses redis[s]://user:password@host:port/db
func parseRedisURL(raw string) (redisURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return redisURL{}, err
	}

	var r redisURL
	switch u.Scheme {
	case "redis":
	case "rediss":
		r.tls = true
	default:
		return redisURL{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	r.addr = u.Host
	if r.addr == "" {
		return redisURL{}, errors.New("missing host")
	}
	if u.Port() == "" {
		r.addr = u.Host + ":6379"
	}

	if u.User != nil {
		r.username = u.User.Username()
		r.password, _ = u.User.Password()
	}

	if db := strings.Trim(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			return redisURL{}, fmt.Errorf("invalid database %q", db)
		}
		r.db = n
	}

	return r, nil
}
