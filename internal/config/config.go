package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Storage  StorageConfig
	Ingest   IngestConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxConcurrentReads bounds in-flight collaborator queries.
	MaxConcurrentReads int64
}

type LogConfig struct {
	Level  string
	Format string
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	SummaryTTLSeconds int
}

// ForecastConfig tunes the forecasting engine. Zero values fall back to engine defaults.
type ForecastConfig struct {
	HistoryWindowDays   int
	FetchTimeout        time.Duration
	Workers             int
	DefaultHorizonDays  int
	ProfilePath         string
	ProfileObjectKey    string
	HighConfidenceScore int
	ReportDir           string
}

// StorageConfig holds the S3-compatible object storage settings used for seasonal
// profiles and batch report uploads.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// IngestConfig selects where stock and sales exports are pulled from. A Drive folder
// wins over a storage prefix; a zero PollInterval disables the background watcher.
type IngestConfig struct {
	DriveCredentialsJSON string
	DriveFolder          string
	StoragePrefix        string
	PollInterval         time.Duration
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper(viper.GetViper())

		if instance.Forecast.ReportDir != "" {
			ensureDir(instance.Forecast.ReportDir)
		}
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stockcast")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONCURRENT_READS", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_SUMMARY_TTL_SECONDS", 300)
	v.SetDefault("FORECAST_HISTORY_WINDOW_DAYS", 180)
	v.SetDefault("FORECAST_FETCH_TIMEOUT", "10s")
	v.SetDefault("FORECAST_WORKERS", 8)
	v.SetDefault("FORECAST_DEFAULT_HORIZON_DAYS", 30)
	v.SetDefault("FORECAST_PROFILE_PATH", "")
	v.SetDefault("FORECAST_PROFILE_OBJECT_KEY", "")
	v.SetDefault("FORECAST_HIGH_CONFIDENCE_SCORE", 80)
	v.SetDefault("FORECAST_REPORT_DIR", "./data/reports")
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("INGEST_DRIVE_FOLDER", "")
	v.SetDefault("INGEST_STORAGE_PREFIX", "")
	v.SetDefault("INGEST_POLL_INTERVAL", "15m")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			DBName:             v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSLMODE"),
			MaxConcurrentReads: v.GetInt64("DB_MAX_CONCURRENT_READS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:           v.GetBool("CACHE_ENABLED"),
			RedisURL:          v.GetString("REDIS_URL"),
			RedisHost:         v.GetString("REDIS_HOST"),
			RedisPort:         v.GetString("REDIS_PORT"),
			RedisPassword:     v.GetString("REDIS_PASSWORD"),
			RedisDB:           v.GetInt("REDIS_DB"),
			SummaryTTLSeconds: v.GetInt("CACHE_SUMMARY_TTL_SECONDS"),
		},
		Forecast: ForecastConfig{
			HistoryWindowDays:   v.GetInt("FORECAST_HISTORY_WINDOW_DAYS"),
			FetchTimeout:        v.GetDuration("FORECAST_FETCH_TIMEOUT"),
			Workers:             v.GetInt("FORECAST_WORKERS"),
			DefaultHorizonDays:  v.GetInt("FORECAST_DEFAULT_HORIZON_DAYS"),
			ProfilePath:         v.GetString("FORECAST_PROFILE_PATH"),
			ProfileObjectKey:    v.GetString("FORECAST_PROFILE_OBJECT_KEY"),
			HighConfidenceScore: v.GetInt("FORECAST_HIGH_CONFIDENCE_SCORE"),
			ReportDir:           v.GetString("FORECAST_REPORT_DIR"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Ingest: IngestConfig{
			DriveCredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			DriveFolder:          v.GetString("INGEST_DRIVE_FOLDER"),
			StoragePrefix:        v.GetString("INGEST_STORAGE_PREFIX"),
			PollInterval:         v.GetDuration("INGEST_POLL_INTERVAL"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
