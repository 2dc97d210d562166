package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Store        StoreConfig
	Workflow     WorkflowConfig
	Alerts       AlertsConfig
	Telemetry    TelemetryConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	AdminEmail            string
	AdminPassword         string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// StoreConfig tunes locking and conflict retries.
type StoreConfig struct {
	LockTimeoutMillis          int
	RetryMaxAttempts           int
	RetryInitialIntervalMillis int
	RetryMaxIntervalMillis     int
}

// WorkflowConfig holds lifecycle settings.
type WorkflowConfig struct {
	StartPolicy        string
	TicketNumberPrefix string
}

// AlertsConfig controls alert evaluation and the background sweep.
type AlertsConfig struct {
	ExpiryWindowDays     int
	SweepIntervalSeconds int
	CacheTTLSeconds      int
}

// TelemetryConfig controls trace export. Tracing is off without an endpoint.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
}

var defaults = map[string]any{
	"app.name":                        "maintenance-service",
	"app.env":                         "development",
	"app.host":                        "0.0.0.0",
	"app.port":                        "8080",
	"app.version":                     "dev",
	"http.request_timeout_seconds":    30,
	"postgres.dsn":                    "",
	"postgres.max_conns":              10,
	"postgres.min_conns":              2,
	"postgres.run_migrations":         true,
	"postgres.conn_max_idle_seconds":  30,
	"postgres.conn_max_life_seconds":  300,
	"redis.enabled":                   true,
	"redis.addr":                      "127.0.0.1:6379",
	"redis.password":                  "",
	"redis.db":                        0,
	"log.level":                       "info",
	"auth.jwt_secret":                 "dev-secret",
	"auth.access_token_ttl_minutes":   60,
	"auth.bcrypt_cost":                12,
	"auth.admin_email":                "admin@example.com",
	"auth.admin_password":             "",
	"notify.email_from":               "noreply@example.com",
	"notify.webhook_url":              "",
	"store.lock_timeout_ms":           2000,
	"store.retry_max_attempts":        3,
	"store.retry_initial_interval_ms": 50,
	"store.retry_max_interval_ms":     500,
	"workflow.start_policy":           "emergency_repair",
	"workflow.ticket_number_prefix":   "",
	"alerts.expiry_window_days":       30,
	"alerts.sweep_interval_seconds":   300,
	"alerts.cache_ttl_seconds":        60,
	"otel.service_name":               "",
	"otel.exporter_otlp_endpoint":     "",
	"otel.exporter_otlp_insecure":     true,
}

// Load reads configuration from an optional CONFIG_FILE and environment
// variables, applying defaults where possible. Nested keys map to
// environment names by upper-casing and replacing dots with underscores,
// so postgres.dsn is read from POSTGRES_DSN.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  v.GetString("app.name"),
			Env:                   v.GetString("app.env"),
			Host:                  v.GetString("app.host"),
			Port:                  v.GetString("app.port"),
			Version:               v.GetString("app.version"),
			RequestTimeoutSeconds: v.GetInt("http.request_timeout_seconds"),
		},
		Postgres: PostgresConfig{
			DSN:            v.GetString("postgres.dsn"),
			MaxConns:       v.GetInt32("postgres.max_conns"),
			MinConns:       v.GetInt32("postgres.min_conns"),
			RunMigrations:  v.GetBool("postgres.run_migrations"),
			ConnMaxIdleSec: v.GetInt32("postgres.conn_max_idle_seconds"),
			ConnMaxLifeSec: v.GetInt32("postgres.conn_max_life_seconds"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("log.level"),
		},
		Auth: AuthConfig{
			JWTSecret:             v.GetString("auth.jwt_secret"),
			AccessTokenTTLMinutes: v.GetInt("auth.access_token_ttl_minutes"),
			BcryptCost:            v.GetInt("auth.bcrypt_cost"),
			AdminEmail:            v.GetString("auth.admin_email"),
			AdminPassword:         v.GetString("auth.admin_password"),
		},
		Notification: NotificationConfig{
			EmailFrom:  v.GetString("notify.email_from"),
			WebhookURL: v.GetString("notify.webhook_url"),
		},
		Store: StoreConfig{
			LockTimeoutMillis:          v.GetInt("store.lock_timeout_ms"),
			RetryMaxAttempts:           v.GetInt("store.retry_max_attempts"),
			RetryInitialIntervalMillis: v.GetInt("store.retry_initial_interval_ms"),
			RetryMaxIntervalMillis:     v.GetInt("store.retry_max_interval_ms"),
		},
		Workflow: WorkflowConfig{
			StartPolicy:        v.GetString("workflow.start_policy"),
			TicketNumberPrefix: v.GetString("workflow.ticket_number_prefix"),
		},
		Alerts: AlertsConfig{
			ExpiryWindowDays:     v.GetInt("alerts.expiry_window_days"),
			SweepIntervalSeconds: v.GetInt("alerts.sweep_interval_seconds"),
			CacheTTLSeconds:      v.GetInt("alerts.cache_ttl_seconds"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  v.GetString("otel.service_name"),
			OTLPEndpoint: v.GetString("otel.exporter_otlp_endpoint"),
			Insecure:     v.GetBool("otel.exporter_otlp_insecure"),
		},
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Store.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("invalid STORE_RETRY_MAX_ATTEMPTS: %d", cfg.Store.RetryMaxAttempts)
	}

	return cfg, nil
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

// AccessTokenTTL returns the lifetime of issued tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// LockTimeout bounds how long a transaction waits for a row lock.
func (s StoreConfig) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMillis) * time.Millisecond
}

// RetryInitialInterval is the first backoff delay after a conflict.
func (s StoreConfig) RetryInitialInterval() time.Duration {
	return time.Duration(s.RetryInitialIntervalMillis) * time.Millisecond
}

// RetryMaxInterval caps the backoff delay.
func (s StoreConfig) RetryMaxInterval() time.Duration {
	return time.Duration(s.RetryMaxIntervalMillis) * time.Millisecond
}

// ExpiryWindow is how far ahead perishable expiry is reported.
func (a AlertsConfig) ExpiryWindow() time.Duration {
	return time.Duration(a.ExpiryWindowDays) * 24 * time.Hour
}

// SweepInterval is the period of the background alert sweep. Zero disables it.
func (a AlertsConfig) SweepInterval() time.Duration {
	return time.Duration(a.SweepIntervalSeconds) * time.Second
}

// CacheTTL bounds how long a cached alert report is served.
func (a AlertsConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}
