package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Backend names accepted by RECORD_BACKEND and IDENTITY_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
// Values come from defaults, then an optional TOML file, then environment variables.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Reconciler
	ActionTimeout time.Duration
	ScanPageSize  int
	RunTimeout    time.Duration
	RunHistoryTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Backends
	RecordBackend   string
	IdentityBackend string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Postgres
	DatabaseURL string

	// Schedule
	ScheduleCron     string
	ScheduleTimezone string

	// Lock
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	// Operator API
	OperatorJWTSecret string
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Port:     8080,
		LogLevel: "info",

		HTTPTimeout: 10 * time.Second,

		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxConcurrency: 16,

		ActionTimeout: 15 * time.Second,
		ScanPageSize:  500,
		RunTimeout:    30 * time.Minute,
		RunHistoryTTL: 7 * 24 * time.Hour,

		RecordBackend:   BackendSupabase,
		IdentityBackend: BackendSupabase,

		ScheduleCron:     "0 0 * * *",
		ScheduleTimezone: "UTC",

		LockTTL: 45 * time.Minute,
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)

	c.MaxRetries = getEnvInt("MAX_RETRIES", c.MaxRetries)
	c.InitialBackoff = getEnvDuration("INITIAL_BACKOFF", c.InitialBackoff)
	c.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", c.MaxConcurrency)

	c.ActionTimeout = getEnvDuration("ACTION_TIMEOUT", c.ActionTimeout)
	c.ScanPageSize = getEnvInt("SCAN_PAGE_SIZE", c.ScanPageSize)
	c.RunTimeout = getEnvDuration("RUN_TIMEOUT", c.RunTimeout)
	c.RunHistoryTTL = getEnvDuration("RUN_HISTORY_TTL", c.RunHistoryTTL)

	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	c.RecordBackend = strings.ToLower(getEnv("RECORD_BACKEND", c.RecordBackend))
	c.IdentityBackend = strings.ToLower(getEnv("IDENTITY_BACKEND", c.IdentityBackend))

	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseAnonKey = getEnv("SUPABASE_ANON_KEY", c.SupabaseAnonKey)
	c.SupabaseServiceKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseServiceKey)

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.ScheduleCron = getEnv("SCHEDULE_CRON", c.ScheduleCron)
	c.ScheduleTimezone = getEnv("SCHEDULE_TIMEZONE", c.ScheduleTimezone)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.LockTTL = getEnvDuration("LOCK_TTL", c.LockTTL)

	c.OperatorJWTSecret = getEnv("OPERATOR_JWT_SECRET", c.OperatorJWTSecret)
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency))
	}
	if c.ScanPageSize <= 0 {
		errs = append(errs, fmt.Errorf("SCAN_PAGE_SIZE must be positive, got %d", c.ScanPageSize))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries))
	}

	switch c.RecordBackend {
	case BackendSupabase:
		errs = append(errs, c.requireSupabase()...)
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres record backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_BACKEND %q", c.RecordBackend))
	}

	switch c.IdentityBackend {
	case BackendSupabase:
		if c.RecordBackend != BackendSupabase {
			errs = append(errs, c.requireSupabase()...)
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_BACKEND %q", c.IdentityBackend))
	}

	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err))
	}
	if _, err := cron.ParseStandard(c.ScheduleCron); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULE_CRON %q: %w", c.ScheduleCron, err))
	}

	return errors.Join(errs...)
}

func (c *Config) requireSupabase() []error {
	var errs []error
	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required for the supabase backend"))
	}
	if c.SupabaseServiceKey == "" {
		errs = append(errs, errors.New("SUPABASE_SERVICE_ROLE_KEY is required for the supabase backend"))
	}
	return errs
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	Port           int    `toml:"port"`
	LogLevel       string `toml:"log_level"`
	HTTPTimeout    string `toml:"http_timeout"`
	MaxRetries     int    `toml:"max_retries"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxConcurrency int    `toml:"max_concurrency"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`

	Reconciler struct {
		ActionTimeout string `toml:"action_timeout"`
		ScanPageSize  int    `toml:"scan_page_size"`
		RunTimeout    string `toml:"run_timeout"`
		HistoryTTL    string `toml:"history_ttl"`
	} `toml:"reconciler"`

	Backends struct {
		Record   string `toml:"record"`
		Identity string `toml:"identity"`
	} `toml:"backends"`

	Supabase struct {
		URL            string `toml:"url"`
		AnonKey        string `toml:"anon_key"`
		ServiceRoleKey string `toml:"service_role_key"`
	} `toml:"supabase"`

	Postgres struct {
		DatabaseURL string `toml:"database_url"`
	} `toml:"postgres"`

	Schedule struct {
		Cron     string `toml:"cron"`
		Timezone string `toml:"timezone"`
		LockTTL  string `toml:"lock_ttl"`
	} `toml:"schedule"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
	} `toml:"redis"`

	Operator struct {
		JWTSecret string `toml:"jwt_secret"`
	} `toml:"operator"`
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config file: unknown key %q", undecoded[0].String())
	}

	setInt := func(dst *int, v int, key ...string) {
		if meta.IsDefined(key...) {
			*dst = v
		}
	}
	setString := func(dst *string, v string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(v)
		}
	}
	var durErr error
	setDuration := func(dst *time.Duration, v string, key ...string) {
		if !meta.IsDefined(key...) || durErr != nil {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			durErr = fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
			return
		}
		*dst = d
	}

	setInt(&c.Port, raw.Port, "port")
	setString(&c.LogLevel, raw.LogLevel, "log_level")
	setDuration(&c.HTTPTimeout, raw.HTTPTimeout, "http_timeout")
	setInt(&c.MaxRetries, raw.MaxRetries, "max_retries")
	setDuration(&c.InitialBackoff, raw.InitialBackoff, "initial_backoff")
	setInt(&c.MaxConcurrency, raw.MaxConcurrency, "max_concurrency")
	setString(&c.OTLPEndpoint, raw.OTLPEndpoint, "otlp_endpoint")

	setDuration(&c.ActionTimeout, raw.Reconciler.ActionTimeout, "reconciler", "action_timeout")
	setInt(&c.ScanPageSize, raw.Reconciler.ScanPageSize, "reconciler", "scan_page_size")
	setDuration(&c.RunTimeout, raw.Reconciler.RunTimeout, "reconciler", "run_timeout")
	setDuration(&c.RunHistoryTTL, raw.Reconciler.HistoryTTL, "reconciler", "history_ttl")

	setString(&c.RecordBackend, strings.ToLower(raw.Backends.Record), "backends", "record")
	setString(&c.IdentityBackend, strings.ToLower(raw.Backends.Identity), "backends", "identity")

	setString(&c.SupabaseURL, raw.Supabase.URL, "supabase", "url")
	setString(&c.SupabaseAnonKey, raw.Supabase.AnonKey, "supabase", "anon_key")
	setString(&c.SupabaseServiceKey, raw.Supabase.ServiceRoleKey, "supabase", "service_role_key")

	setString(&c.DatabaseURL, raw.Postgres.DatabaseURL, "postgres", "database_url")

	setString(&c.ScheduleCron, raw.Schedule.Cron, "schedule", "cron")
	setString(&c.ScheduleTimezone, raw.Schedule.Timezone, "schedule", "timezone")
	setDuration(&c.LockTTL, raw.Schedule.LockTTL, "schedule", "lock_ttl")

	setString(&c.RedisAddr, raw.Redis.Addr, "redis", "addr")
	setString(&c.RedisPassword, raw.Redis.Password, "redis", "password")

	setString(&c.OperatorJWTSecret, raw.Operator.JWTSecret, "operator", "jwt_secret")

	return durErr
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
