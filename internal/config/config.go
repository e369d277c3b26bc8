package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	SLA        SLAConfig
	Escalation EscalationConfig
	Push       PushConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	ServiceAPIKey         string
	// BootstrapAdminEmail and BootstrapAdminPassword create the first admin
	// at startup when no staff account with that email exists.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// SLAConfig controls the violation scanner schedule.
type SLAConfig struct {
	ScanIntervalSeconds int
	LockTTLSeconds      int
}

// EscalationConfig controls queue defaults and the expiry sweep.
type EscalationConfig struct {
	DefaultTTLMinutes  int
	ExpirySweepSeconds int
}

// PushConfig configures the websocket push gateway.
type PushConfig struct {
	Addr           string
	DebounceMillis int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			ServiceAPIKey:          os.Getenv("AUTH_SERVICE_API_KEY"),
			BootstrapAdminEmail:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		SLA: SLAConfig{
			ScanIntervalSeconds: getEnvAsInt("SLA_SCAN_INTERVAL_SECONDS", 60),
			LockTTLSeconds:      getEnvAsInt("SLA_SCAN_LOCK_TTL_SECONDS", 50),
		},
		Escalation: EscalationConfig{
			DefaultTTLMinutes:  getEnvAsInt("ESCALATION_DEFAULT_TTL_MINUTES", 0),
			ExpirySweepSeconds: getEnvAsInt("ESCALATION_EXPIRY_SWEEP_SECONDS", 60),
		},
		Push: PushConfig{
			Addr:           getEnv("PUSH_ADDR", ":8081"),
			DebounceMillis: getEnvAsInt("PUSH_DEBOUNCE_MILLIS", 100),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.SLA.ScanIntervalSeconds <= 0 {
		errs = append(errs, errors.New("SLA_SCAN_INTERVAL_SECONDS must be positive"))
	}
	if c.SLA.LockTTLSeconds <= 0 || c.SLA.LockTTLSeconds > c.SLA.ScanIntervalSeconds {
		errs = append(errs, errors.New("SLA_SCAN_LOCK_TTL_SECONDS must be positive and not exceed the scan interval"))
	}
	if c.Escalation.DefaultTTLMinutes < 0 {
		errs = append(errs, errors.New("ESCALATION_DEFAULT_TTL_MINUTES must not be negative"))
	}
	if c.Escalation.ExpirySweepSeconds <= 0 {
		errs = append(errs, errors.New("ESCALATION_EXPIRY_SWEEP_SECONDS must be positive"))
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		errs = append(errs, errors.New("LOG_FORMAT must be json or console"))
	}
	if c.Push.DebounceMillis < 0 {
		errs = append(errs, errors.New("PUSH_DEBOUNCE_MILLIS must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the staff token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// ScanInterval returns the scanner tick.
func (s SLAConfig) ScanInterval() time.Duration {
	return time.Duration(s.ScanIntervalSeconds) * time.Second
}

// LockTTL returns how long one replica holds the scan lease.
func (s SLAConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// DefaultTTL returns the default pending lifetime of queue items; zero means no expiry.
func (e EscalationConfig) DefaultTTL() time.Duration {
	return time.Duration(e.DefaultTTLMinutes) * time.Minute
}

// ExpirySweep returns the expiry sweep tick.
func (e EscalationConfig) ExpirySweep() time.Duration {
	return time.Duration(e.ExpirySweepSeconds) * time.Second
}

// Debounce returns the per-subscriber coalescing window.
func (p PushConfig) Debounce() time.Duration {
	return time.Duration(p.DebounceMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
