package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix is the prefix of environment overrides, e.g. CRECHE_DATABASE_PASSWORD
const EnvPrefix = "CRECHE"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Matching  MatchingConfig
	Reminder  ReminderConfig
	Email     EmailConfig
	WhatsApp  WhatsAppConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name     string
	Env      string
	Timezone string // business timezone used to count days overdue
}

// Location loads the configured business timezone
func (a AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid app.timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// MatchingConfig tunes the payment matcher
type MatchingConfig struct {
	AutoApplyThreshold int
	AmountTolerancePct float64
	DateProximityDays  int
	MaxSuggestions     int
}

// ReminderConfig tunes reminder batches
type ReminderConfig struct {
	Concurrency int
	LockTTL     time.Duration
	ProfileTTL  time.Duration // how long creche banking details are cached
	Locale      string        // BCP 47 tag used to format amounts, e.g. en-ZA
}

// LocaleTag parses the configured reminder locale
func (r ReminderConfig) LocaleTag() (language.Tag, error) {
	tag, err := language.Parse(r.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid reminder.locale %q: %w", r.Locale, err)
	}
	return tag, nil
}

// EmailConfig holds the email provider settings
type EmailConfig struct {
	Enabled    bool
	BaseURL    string
	APIKey     string
	From       string
	Timeout    time.Duration
	MaxRetries int
}

// WhatsAppConfig holds the WhatsApp Business API settings
type WhatsAppConfig struct {
	Enabled       bool
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxRetries    int
}

// SchedulerConfig holds the escalation scheduler settings
type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration
	Workers       int
	TenantTimeout time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CRECHE_ prefix (e.g., CRECHE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Timezone: v.GetString("app.timezone"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Matching: MatchingConfig{
			AutoApplyThreshold: v.GetInt("matching.auto_apply_threshold"),
			AmountTolerancePct: v.GetFloat64("matching.amount_tolerance_pct"),
			DateProximityDays:  v.GetInt("matching.date_proximity_days"),
			MaxSuggestions:     v.GetInt("matching.max_suggestions"),
		},
		Reminder: ReminderConfig{
			Concurrency: v.GetInt("reminder.concurrency"),
			LockTTL:     v.GetDuration("reminder.lock_ttl"),
			ProfileTTL:  v.GetDuration("reminder.profile_ttl"),
			Locale:      v.GetString("reminder.locale"),
		},
		Email: EmailConfig{
			Enabled:    v.GetBool("email.enabled"),
			BaseURL:    v.GetString("email.base_url"),
			APIKey:     v.GetString("email.api_key"),
			From:       v.GetString("email.from"),
			Timeout:    v.GetDuration("email.timeout"),
			MaxRetries: v.GetInt("email.max_retries"),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:       v.GetBool("whatsapp.enabled"),
			BaseURL:       v.GetString("whatsapp.base_url"),
			AccessToken:   v.GetString("whatsapp.access_token"),
			PhoneNumberID: v.GetString("whatsapp.phone_number_id"),
			RatePerSecond: v.GetFloat64("whatsapp.rate_per_second"),
			Burst:         v.GetInt("whatsapp.burst"),
			Timeout:       v.GetDuration("whatsapp.timeout"),
			MaxRetries:    v.GetInt("whatsapp.max_retries"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			Interval:      v.GetDuration("scheduler.interval"),
			Workers:       v.GetInt("scheduler.workers"),
			TenantTimeout: v.GetDuration("scheduler.tenant_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "crechebooks-worker"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Africa/Johannesburg"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "crechebooks"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "crechebooks-worker"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Matching.AutoApplyThreshold == 0 {
		cfg.Matching.AutoApplyThreshold = 80
	}
	if cfg.Matching.AmountTolerancePct == 0 {
		cfg.Matching.AmountTolerancePct = 5
	}
	if cfg.Matching.DateProximityDays == 0 {
		cfg.Matching.DateProximityDays = 7
	}
	if cfg.Matching.MaxSuggestions == 0 {
		cfg.Matching.MaxSuggestions = 5
	}
	if cfg.Reminder.Concurrency == 0 {
		cfg.Reminder.Concurrency = 4
	}
	if cfg.Reminder.LockTTL == 0 {
		cfg.Reminder.LockTTL = 10 * time.Minute
	}
	if cfg.Reminder.ProfileTTL == 0 {
		cfg.Reminder.ProfileTTL = 15 * time.Minute
	}
	if cfg.Reminder.Locale == "" {
		cfg.Reminder.Locale = "en-ZA"
	}
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = 10 * time.Second
	}
	if cfg.Email.MaxRetries == 0 {
		cfg.Email.MaxRetries = 3
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if cfg.WhatsApp.RatePerSecond == 0 {
		cfg.WhatsApp.RatePerSecond = 10
	}
	if cfg.WhatsApp.Burst == 0 {
		cfg.WhatsApp.Burst = 5
	}
	if cfg.WhatsApp.Timeout == 0 {
		cfg.WhatsApp.Timeout = 10 * time.Second
	}
	if cfg.WhatsApp.MaxRetries == 0 {
		cfg.WhatsApp.MaxRetries = 3
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Hour
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.TenantTimeout == 0 {
		cfg.Scheduler.TenantTimeout = 5 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}
	if c.Matching.AutoApplyThreshold < 80 || c.Matching.AutoApplyThreshold > 100 {
		return fmt.Errorf("matching.auto_apply_threshold must be between 80 and 100, got %d", c.Matching.AutoApplyThreshold)
	}
	if c.Matching.AmountTolerancePct < 0 || c.Matching.AmountTolerancePct > 50 {
		return fmt.Errorf("matching.amount_tolerance_pct must be between 0 and 50, got %v", c.Matching.AmountTolerancePct)
	}
	if c.Reminder.Concurrency < 1 {
		return fmt.Errorf("reminder.concurrency must be positive")
	}
	if _, err := c.Reminder.LocaleTag(); err != nil {
		return err
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	if c.Email.Enabled && (c.Email.BaseURL == "" || c.Email.From == "") {
		return fmt.Errorf("email.base_url and email.from are required when email is enabled")
	}
	if c.WhatsApp.Enabled && (c.WhatsApp.AccessToken == "" || c.WhatsApp.PhoneNumberID == "") {
		return fmt.Errorf("whatsapp.access_token and whatsapp.phone_number_id are required when whatsapp is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" || c.Database.Password == "postgres" {
			return fmt.Errorf("database.password must be set to a non-default value in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
