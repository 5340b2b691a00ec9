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

// Storage drivers for export files.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Notification transports.
const (
	TransportMemory = "memory"
	TransportAMQP   = "amqp"
)

type Config struct {
	Env         string
	ServiceName string
	Port        int
	APIPrefix   string
	PublicURL   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Grid          GridConfig
	Exports       ExportsConfig
	S3            S3Config
	Mail          MailConfig
	Notifications NotificationsConfig
	Digest        DigestConfig
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
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GridConfig describes the timetable window used by the grid layout and exports.
type GridConfig struct {
	DayStart    string
	DayEnd      string
	SlotMinutes int
	SlotPolicy  string
	CacheTTL    time.Duration
}

// ExportsConfig configures asynchronous export generation.
type ExportsConfig struct {
	StorageDriver     string
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// S3Config holds object storage settings used when the export driver is s3.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	Prefix       string
	UsePathStyle bool
}

// MailConfig holds SMTP delivery settings.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// NotificationsConfig selects how faculty notifications reach the mailer.
type NotificationsConfig struct {
	Transport string
	AMQPURL   string
	Queue     string
	Workers   int
}

// DigestConfig schedules the weekly timetable digest.
type DigestConfig struct {
	Enabled bool
	Cron    string
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.ServiceName = v.GetString("SERVICE_NAME")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicURL = strings.TrimRight(v.GetString("PUBLIC_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Grid = GridConfig{
		DayStart:    v.GetString("GRID_DAY_START"),
		DayEnd:      v.GetString("GRID_DAY_END"),
		SlotMinutes: v.GetInt("GRID_SLOT_MINUTES"),
		SlotPolicy:  strings.ToLower(v.GetString("GRID_SLOT_POLICY")),
		CacheTTL:    parseDuration(v.GetString("GRID_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDriver:     strings.ToLower(v.GetString("EXPORTS_STORAGE_DRIVER")),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.S3 = S3Config{
		Bucket:       v.GetString("S3_BUCKET"),
		Region:       v.GetString("S3_REGION"),
		Endpoint:     v.GetString("S3_ENDPOINT"),
		Prefix:       strings.Trim(v.GetString("S3_PREFIX"), "/"),
		UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
	}

	cfg.Mail = MailConfig{
		Enabled:  v.GetBool("MAIL_ENABLED"),
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("MAIL_FROM"),
		FromName: v.GetString("MAIL_FROM_NAME"),
		TLS:      v.GetBool("SMTP_TLS"),
	}

	cfg.Notifications = NotificationsConfig{
		Transport: strings.ToLower(v.GetString("NOTIFICATIONS_TRANSPORT")),
		AMQPURL:   v.GetString("AMQP_URL"),
		Queue:     v.GetString("NOTIFICATIONS_QUEUE"),
		Workers:   v.GetInt("NOTIFICATIONS_WORKERS"),
	}

	cfg.Digest = DigestConfig{
		Enabled: v.GetBool("DIGEST_ENABLED"),
		Cron:    v.GetString("DIGEST_CRON"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	if c.Grid.SlotMinutes <= 0 {
		return fmt.Errorf("GRID_SLOT_MINUTES must be positive, got %d", c.Grid.SlotMinutes)
	}
	if c.Grid.SlotPolicy != "clamp" && c.Grid.SlotPolicy != "overflow" {
		return fmt.Errorf("GRID_SLOT_POLICY must be clamp or overflow, got %q", c.Grid.SlotPolicy)
	}
	switch c.Exports.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required when EXPORTS_STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown EXPORTS_STORAGE_DRIVER %q", c.Exports.StorageDriver)
	}
	switch c.Notifications.Transport {
	case TransportMemory:
	case TransportAMQP:
		if c.Notifications.AMQPURL == "" {
			return errors.New("AMQP_URL is required when NOTIFICATIONS_TRANSPORT=amqp")
		}
	default:
		return fmt.Errorf("unknown NOTIFICATIONS_TRANSPORT %q", c.Notifications.Transport)
	}
	if c.Env == EnvProduction && c.JWT.Secret == "dev_secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("SERVICE_NAME", "college-scheduling-api")
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_URL", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "college_scheduling")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "college-scheduling-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRID_DAY_START", "07:00")
	v.SetDefault("GRID_DAY_END", "21:00")
	v.SetDefault("GRID_SLOT_MINUTES", 30)
	v.SetDefault("GRID_SLOT_POLICY", "clamp")
	v.SetDefault("GRID_CACHE_TTL", "10m")

	v.SetDefault("EXPORTS_STORAGE_DRIVER", StorageLocal)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 2)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_PREFIX", "exports")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "scheduling@college.local")
	v.SetDefault("MAIL_FROM_NAME", "Class Scheduling")
	v.SetDefault("SMTP_TLS", true)

	v.SetDefault("NOTIFICATIONS_TRANSPORT", TransportMemory)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("NOTIFICATIONS_QUEUE", "faculty.notifications")
	v.SetDefault("NOTIFICATIONS_WORKERS", 1)

	v.SetDefault("DIGEST_ENABLED", false)
	v.SetDefault("DIGEST_CRON", "0 6 * * 1")
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
