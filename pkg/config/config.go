package config

import (
	"errors"
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

// Storage drivers supported for assignment files.
const (
	StorageDriverLocal = "local"
	StorageDriverB2    = "b2"
)

type Config struct {
	Env            string
	Port           int
	APIPrefix      string
	MigrateOnStart bool

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Meetings MeetingsConfig
	Storage  StorageConfig
	Files    FilesConfig
	Mail     MailConfig
	Notifier NotifierConfig
	Shutdown time.Duration
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
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// AuthConfig describes how Supabase access tokens are verified.
type AuthConfig struct {
	JWTSecret  string
	JWKSURL    string
	Issuer     string
	Audience   string
	ProfileTTL time.Duration
	LeewaySkew time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs Redis backed response caching.
type CacheConfig struct {
	Enabled      bool
	DashboardTTL time.Duration
}

// MeetingsConfig controls synthetic meeting expansion.
type MeetingsConfig struct {
	Timezone  string
	Lookahead time.Duration
}

// StorageConfig selects the object store for uploaded files.
type StorageConfig struct {
	Driver      string
	Dir         string
	B2AccountID string
	B2AppKey    string
	B2Bucket    string
}

// FilesConfig controls upload validation and signed downloads.
type FilesConfig struct {
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// MailConfig configures outgoing email.
type MailConfig struct {
	SendgridAPIKey string
	FromName       string
	FromAddress    string
}

// NotifierConfig sizes the notification worker pool.
type NotifierConfig struct {
	Workers int
	Retries int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.MigrateOnStart = v.GetBool("MIGRATE_ON_START")
	cfg.Shutdown = parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 10*time.Second)

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		Timeout:  parseDuration(v.GetString("REDIS_TIMEOUT"), 500*time.Millisecond),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:  v.GetString("SUPABASE_JWT_SECRET"),
		JWKSURL:    v.GetString("SUPABASE_JWKS_URL"),
		Issuer:     v.GetString("SUPABASE_JWT_ISSUER"),
		Audience:   v.GetString("SUPABASE_JWT_AUDIENCE"),
		ProfileTTL: parseDuration(v.GetString("PROFILE_CACHE_TTL"), 5*time.Minute),
		LeewaySkew: parseDuration(v.GetString("JWT_LEEWAY"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		DashboardTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.Meetings = MeetingsConfig{
		Timezone:  v.GetString("MEETINGS_TIMEZONE"),
		Lookahead: parseDuration(v.GetString("MEETINGS_LOOKAHEAD"), 30*24*time.Hour),
	}

	cfg.Storage = StorageConfig{
		Driver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:         v.GetString("STORAGE_DIR"),
		B2AccountID: v.GetString("B2_ACCOUNT_ID"),
		B2AppKey:    v.GetString("B2_APP_KEY"),
		B2Bucket:    v.GetString("B2_BUCKET"),
	}

	maxFileSize := v.GetInt64("FILES_MAX_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	cfg.Files = FilesConfig{
		SignedURLSecret:  v.GetString("FILES_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("FILES_SIGNED_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("FILES_ALLOWED_MIME_TYPES")),
	}

	cfg.Mail = MailConfig{
		SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
	}

	cfg.Notifier = NotifierConfig{
		Workers: v.GetInt("NOTIFY_WORKERS"),
		Retries: v.GetInt("NOTIFY_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_TIMEOUT", "500ms")

	v.SetDefault("SUPABASE_JWT_SECRET", "dev_secret")
	v.SetDefault("SUPABASE_JWKS_URL", "")
	v.SetDefault("SUPABASE_JWT_ISSUER", "")
	v.SetDefault("SUPABASE_JWT_AUDIENCE", "authenticated")
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "1m")

	v.SetDefault("MEETINGS_TIMEZONE", "UTC")
	v.SetDefault("MEETINGS_LOOKAHEAD", "720h")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("B2_ACCOUNT_ID", "")
	v.SetDefault("B2_APP_KEY", "")
	v.SetDefault("B2_BUCKET", "")

	v.SetDefault("FILES_SIGNED_URL_SECRET", "dev_files_secret")
	v.SetDefault("FILES_SIGNED_URL_TTL", "15m")
	v.SetDefault("FILES_MAX_SIZE", 20*1024*1024)
	v.SetDefault("FILES_ALLOWED_MIME_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,image/png,image/jpeg,audio/mpeg,audio/wav,audio/webm,text/plain,application/zip")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "LMS")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@lms.local")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
