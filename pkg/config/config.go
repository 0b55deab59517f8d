package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Escalation profiles selectable through ESCALATION_PROFILE.
const (
	ProfileStages = "stages"
	ProfileMatrix = "matrix"
	ProfileCustom = "custom"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Points        PointsConfig
	Escalation    EscalationConfig
	Fiscal        FiscalConfig
	Notifications NotificationsConfig
	Reports       ReportsConfig
	Training      TrainingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	// TxRetries bounds retries of serialization failures and deadlocks.
	TxRetries int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PointsConfig controls ledger arithmetic.
type PointsConfig struct {
	FloorEnabled bool
	Floor        int
	// RecalcConcurrency bounds how many employees are reconciled in parallel.
	RecalcConcurrency int
}

// EscalationConfig selects the escalation matrix and record defaults.
type EscalationConfig struct {
	Profile    string
	MatrixFile string
	DueDays    int
}

// FiscalConfig describes the fiscal year boundary and its reset scheduler.
type FiscalConfig struct {
	StartMonth       int
	StartDay         int
	SchedulerEnabled bool
	CheckInterval    time.Duration
}

// NotificationsConfig configures escalation event publishing.
type NotificationsConfig struct {
	Enabled    bool
	Channel    string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ReportsConfig governs read-only reporting endpoints.
type ReportsConfig struct {
	CacheTTL time.Duration
}

// TrainingConfig authenticates the training provider's completion callback.
type TrainingConfig struct {
	CallbackToken string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		TxRetries:    v.GetInt("DB_TX_RETRIES"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Points = PointsConfig{
		FloorEnabled:      v.GetBool("POINTS_FLOOR_ENABLED"),
		Floor:             v.GetInt("POINTS_FLOOR"),
		RecalcConcurrency: v.GetInt("POINTS_RECALC_CONCURRENCY"),
	}

	cfg.Escalation = EscalationConfig{
		Profile:    strings.ToLower(strings.TrimSpace(v.GetString("ESCALATION_PROFILE"))),
		MatrixFile: v.GetString("ESCALATION_MATRIX_FILE"),
		DueDays:    v.GetInt("ESCALATION_DUE_DAYS"),
	}

	cfg.Fiscal = FiscalConfig{
		StartMonth:       v.GetInt("FISCAL_YEAR_START_MONTH"),
		StartDay:         v.GetInt("FISCAL_YEAR_START_DAY"),
		SchedulerEnabled: v.GetBool("FISCAL_RESET_SCHEDULER_ENABLED"),
		CheckInterval:    parseDuration(v.GetString("FISCAL_RESET_CHECK_INTERVAL"), time.Hour),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:    v.GetBool("ENABLE_NOTIFICATIONS"),
		Channel:    v.GetString("NOTIFICATIONS_CHANNEL"),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Reports = ReportsConfig{
		CacheTTL: parseDuration(v.GetString("REPORTS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Training = TrainingConfig{CallbackToken: v.GetString("TRAINING_CALLBACK_TOKEN")}

	return cfg
}

// Validate rejects configuration the service cannot start with.
func (c *Config) Validate() error {
	if c.Fiscal.StartMonth < 1 || c.Fiscal.StartMonth > 12 {
		return fmt.Errorf("FISCAL_YEAR_START_MONTH must be between 1 and 12, got %d", c.Fiscal.StartMonth)
	}
	// Days past 28 do not exist in every month.
	if c.Fiscal.StartDay < 1 || c.Fiscal.StartDay > 28 {
		return fmt.Errorf("FISCAL_YEAR_START_DAY must be between 1 and 28, got %d", c.Fiscal.StartDay)
	}
	if c.Escalation.DueDays <= 0 {
		return fmt.Errorf("ESCALATION_DUE_DAYS must be positive, got %d", c.Escalation.DueDays)
	}
	switch c.Escalation.Profile {
	case ProfileStages, ProfileMatrix:
	case ProfileCustom:
		if c.Escalation.MatrixFile == "" {
			return fmt.Errorf("ESCALATION_MATRIX_FILE is required for the %q profile", ProfileCustom)
		}
	default:
		return fmt.Errorf("unknown ESCALATION_PROFILE %q", c.Escalation.Profile)
	}
	if c.Points.RecalcConcurrency <= 0 {
		c.Points.RecalcConcurrency = 1
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "contraventions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_TX_RETRIES", 3)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("POINTS_FLOOR_ENABLED", true)
	v.SetDefault("POINTS_FLOOR", 0)
	v.SetDefault("POINTS_RECALC_CONCURRENCY", 4)

	v.SetDefault("ESCALATION_PROFILE", ProfileStages)
	v.SetDefault("ESCALATION_MATRIX_FILE", "")
	v.SetDefault("ESCALATION_DUE_DAYS", 14)

	v.SetDefault("FISCAL_YEAR_START_MONTH", 4)
	v.SetDefault("FISCAL_YEAR_START_DAY", 1)
	v.SetDefault("FISCAL_RESET_SCHEDULER_ENABLED", false)
	v.SetDefault("FISCAL_RESET_CHECK_INTERVAL", "1h")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFICATIONS_CHANNEL", "contraventions.escalations")
	v.SetDefault("NOTIFICATIONS_WORKERS", 1)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "2s")

	v.SetDefault("REPORTS_CACHE_TTL", "5m")
	v.SetDefault("TRAINING_CALLBACK_TOKEN", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
