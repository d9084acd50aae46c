package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	SQS       SQSConfig
	PII       PIIConfig
	Analytics AnalyticsConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	Enabled       bool
}

// SQSConfig points at the queue the ad-network delivery workers consume.
// Endpoint is only set for local ElasticMQ.
type SQSConfig struct {
	Region   string
	QueueURL string
	Endpoint string
	Enabled  bool
}

type PIIConfig struct {
	Secret string
}

type AnalyticsConfig struct {
	AttributionWindowDays int
	DecayHalfLifeDays     float64
	ChurnThresholdDays    int
	BatchSize             int
	BenchmarkTTL          time.Duration
	DuplicateThreshold    float64
	ScheduleInterval      time.Duration
	ConversionMaxRetries  int
	SessionIdleTimeout    time.Duration
	SchedulerEnabled      bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Customer Intelligence API"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "customer_intel"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			Enabled:       getEnvBool("REDIS_ENABLED", true),
		},
		SQS: SQSConfig{
			Region:   getEnv("SQS_REGION", "eu-central-1"),
			QueueURL: getEnv("SQS_CONVERSIONS_QUEUE_URL", ""),
			Endpoint: getEnv("SQS_ENDPOINT", ""),
			Enabled:  getEnvBool("SQS_ENABLED", false),
		},
		PII: PIIConfig{
			Secret: getEnv("PII_SECRET", ""),
		},
		Analytics: AnalyticsConfig{
			AttributionWindowDays: getEnvInt("ATTRIBUTION_WINDOW_DAYS", 30),
			DecayHalfLifeDays:     getEnvFloat("ATTRIBUTION_HALF_LIFE_DAYS", 7),
			ChurnThresholdDays:    getEnvInt("CHURN_THRESHOLD_DAYS", 90),
			BatchSize:             getEnvInt("ANALYTICS_BATCH_SIZE", 500),
			BenchmarkTTL:          getEnvDuration("LTV_BENCHMARK_TTL", time.Hour),
			DuplicateThreshold:    getEnvFloat("DUPLICATE_THRESHOLD", 0.7),
			ScheduleInterval:      getEnvDuration("ANALYTICS_SCHEDULE_INTERVAL", time.Hour),
			ConversionMaxRetries:  getEnvInt("CONVERSION_MAX_RETRIES", 5),
			SessionIdleTimeout:    getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SchedulerEnabled:      getEnvBool("ANALYTICS_SCHEDULER_ENABLED", true),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.PII.Secret == "" {
		return nil, errors.New("missing pii secret")
	}

	if cfg.SQS.Enabled && cfg.SQS.QueueURL == "" {
		return nil, errors.New("missing sqs conversions queue url")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}
