package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Import   ImportConfig
	Grading  GradingConfig
	Metrics  MetricsConfig
	Export   ExportConfig
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
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ImportConfig tunes the snapshot reconciliation pipeline.
type ImportConfig struct {
	WriteConcurrency int
	LockTimeout      time.Duration
	LockTTL          time.Duration
	DistributedLock  bool
	HistoryLimit     int
	MaxSnapshotBytes int64
	ArchiveEnabled   bool
	ArchiveDir       string
	ArchiveRetention time.Duration
}

// GradingConfig controls dispatch of committed submissions to the external grader.
type GradingConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool
}

// ExportConfig controls import history report rendering.
type ExportConfig struct {
	MaxRows int
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
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxSnapshot := v.GetInt64("IMPORT_MAX_SNAPSHOT_BYTES")
	if maxSnapshot <= 0 {
		maxSnapshot = 32 * 1024 * 1024
	}
	cfg.Import = ImportConfig{
		WriteConcurrency: positiveOr(v.GetInt("IMPORT_WRITE_CONCURRENCY"), 4),
		LockTimeout:      parseDuration(v.GetString("IMPORT_LOCK_TIMEOUT"), 2*time.Minute),
		LockTTL:          parseDuration(v.GetString("IMPORT_LOCK_TTL"), 10*time.Minute),
		DistributedLock:  v.GetBool("IMPORT_DISTRIBUTED_LOCK"),
		HistoryLimit:     positiveOr(v.GetInt("IMPORT_HISTORY_LIMIT"), 20),
		MaxSnapshotBytes: maxSnapshot,
		ArchiveEnabled:   v.GetBool("IMPORT_ARCHIVE_ENABLED"),
		ArchiveDir:       v.GetString("IMPORT_ARCHIVE_DIR"),
		ArchiveRetention: parseDuration(v.GetString("IMPORT_ARCHIVE_RETENTION"), 0),
	}

	cfg.Grading = GradingConfig{
		Enabled:    v.GetBool("ENABLE_GRADING_DISPATCH"),
		Workers:    positiveOr(v.GetInt("GRADING_WORKERS"), 1),
		Retries:    positiveOr(v.GetInt("GRADING_RETRIES"), 3),
		RetryDelay: parseDuration(v.GetString("GRADING_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Export = ExportConfig{MaxRows: positiveOr(v.GetInt("EXPORT_MAX_ROWS"), 500)}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classroom_snapshots")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("IMPORT_WRITE_CONCURRENCY", 4)
	v.SetDefault("IMPORT_LOCK_TIMEOUT", "2m")
	v.SetDefault("IMPORT_LOCK_TTL", "10m")
	v.SetDefault("IMPORT_DISTRIBUTED_LOCK", false)
	v.SetDefault("IMPORT_HISTORY_LIMIT", 20)
	v.SetDefault("IMPORT_MAX_SNAPSHOT_BYTES", 32*1024*1024)
	v.SetDefault("IMPORT_ARCHIVE_ENABLED", false)
	v.SetDefault("IMPORT_ARCHIVE_DIR", "./snapshots")
	v.SetDefault("IMPORT_ARCHIVE_RETENTION", "")

	v.SetDefault("ENABLE_GRADING_DISPATCH", false)
	v.SetDefault("GRADING_WORKERS", 1)
	v.SetDefault("GRADING_RETRIES", 3)
	v.SetDefault("GRADING_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("EXPORT_MAX_ROWS", 500)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
